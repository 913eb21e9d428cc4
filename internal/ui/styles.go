// Package ui renders tasker output for the terminal: lipgloss styles with
// adaptive light/dark colours, glamour for task descriptions, and a pager
// for long output.
package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Each colour has a light-background and a dark-background shade.
var (
	ColorGreen  = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	ColorYellow = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	ColorRed    = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	ColorGray   = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
	ColorBlue   = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
)

var (
	PassStyle     = lipgloss.NewStyle().Foreground(ColorGreen)
	WarnStyle     = lipgloss.NewStyle().Foreground(ColorYellow)
	FailStyle     = lipgloss.NewStyle().Foreground(ColorRed)
	MutedStyle    = lipgloss.NewStyle().Foreground(ColorGray)
	AccentStyle   = lipgloss.NewStyle().Foreground(ColorBlue)
	CategoryStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)

	PriorityHighStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)
	PriorityMediumStyle = lipgloss.NewStyle().Foreground(ColorYellow)
	PriorityLowStyle    = lipgloss.NewStyle().Foreground(ColorGray)
)

// icon pairs a glyph with its plain-text fallback.
type icon struct{ glyph, plain string }

func (i icon) String() string {
	if ShouldUseEmoji() {
		return i.glyph
	}
	return i.plain
}

var (
	iconPass    = icon{"✓", "[x]"}
	iconWarn    = icon{"⚠", "[!]"}
	iconFail    = icon{"✗", "[-]"}
	iconPending = icon{"○", "[ ]"}
)

// TreeLast prefixes detail lines under a task.
const TreeLast = "└─ "

const separatorWidth = 42

func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

// RenderCategory renders a section header in upper case.
func RenderCategory(s string) string {
	return CategoryStyle.Render(strings.ToUpper(s))
}

// RenderSeparator renders a muted horizontal rule.
func RenderSeparator() string {
	return MutedStyle.Render(strings.Repeat("─", separatorWidth))
}

func RenderPassIcon() string { return PassStyle.Render(iconPass.String()) }
func RenderWarnIcon() string { return WarnStyle.Render(iconWarn.String()) }
func RenderFailIcon() string { return FailStyle.Render(iconFail.String()) }
