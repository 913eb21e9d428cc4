package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) // #nosec G115
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions, then
// falls back to whether stdout is a terminal.
func ShouldUseColor() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// ShouldUseEmoji reports whether status icons should be drawn.
// TASKER_NO_EMOJI turns them off.
func ShouldUseEmoji() bool {
	if os.Getenv("TASKER_NO_EMOJI") != "" {
		return false
	}
	return IsTerminal()
}

// terminalSize returns stdout's width and height, or zeros.
func terminalSize() (int, int) {
	w, h, err := term.GetSize(int(os.Stdout.Fd())) // #nosec G115
	if err != nil {
		return 0, 0
	}
	return w, h
}

const (
	defaultWrap = 80
	maxWrap     = 100
)

// RenderMarkdown renders markdown with glamour, wrapped to the terminal
// width (at most 100 columns). Without colour, or when rendering fails,
// the text is returned as is.
func RenderMarkdown(md string) string {
	if !ShouldUseColor() {
		return md
	}
	width, _ := terminalSize()
	if width <= 0 {
		width = defaultWrap
	}
	width = min(width, maxWrap)

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}

// PagerOptions controls Page.
type PagerOptions struct {
	NoPager bool // --no-pager
}

// pagerCommand returns TASKER_PAGER, PAGER or less, split into argv.
func pagerCommand() []string {
	for _, env := range []string{"TASKER_PAGER", "PAGER"} {
		if p := strings.Fields(os.Getenv(env)); len(p) > 0 {
			return p
		}
	}
	return []string{"less"}
}

// Page writes content to out, through a pager when out is the terminal
// and the content is taller than the screen. TASKER_NO_PAGER disables it.
func Page(out io.Writer, content string, opts PagerOptions) error {
	if opts.NoPager || os.Getenv("TASKER_NO_PAGER") != "" || out != io.Writer(os.Stdout) || !IsTerminal() {
		_, err := io.WriteString(out, content)
		return err
	}
	if _, height := terminalSize(); height > 0 && strings.Count(content, "\n") < height {
		_, err := io.WriteString(out, content)
		return err
	}

	argv := pagerCommand()
	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 - pager is chosen by the user
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if os.Getenv("LESS") == "" {
		// Keep colours, quit on one screen, leave output on exit.
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %s: %w", argv[0], err)
	}
	return nil
}
