package ui

import (
	"fmt"
	"strings"

	"github.com/cloudsbay/tasker/internal/idgen"
	"github.com/cloudsbay/tasker/internal/types"
)

// RenderPriority colours a priority label.
func RenderPriority(p types.Priority) string {
	switch p {
	case types.PriorityHigh:
		return PriorityHighStyle.Render(string(p))
	case types.PriorityMedium:
		return PriorityMediumStyle.Render(string(p))
	default:
		return PriorityLowStyle.Render(string(p))
	}
}

// StatusIcon returns the marker for a task's status.
func StatusIcon(t *types.Task) string {
	if !t.IsPending() {
		return RenderPassIcon()
	}
	return MutedStyle.Render(iconPending.String())
}

// RenderTaskLine renders one list row:
//
//	○ 3f9a1c  Pay bills  [High]  due 2025-07-01
func RenderTaskLine(t *types.Task, highlight bool) string {
	name := Clip(t.Name, 60)
	if highlight {
		name = CategoryStyle.Render(name)
	}
	line := fmt.Sprintf("%s %s  %s  [%s]", StatusIcon(t), RenderMuted(idgen.ShortID(t.ID)), name, RenderPriority(t.Priority))
	if t.Deadline != "" {
		line += "  " + RenderMuted("due "+t.Deadline)
	}
	return line
}

// RenderTaskList renders tasks one per line. The task with topID is
// marked as the current priority.
func RenderTaskList(tasks []*types.Task, topID string) string {
	if len(tasks) == 0 {
		return RenderMuted("No tasks.") + "\n"
	}
	var b strings.Builder
	for _, t := range tasks {
		top := topID != "" && t.ID == topID
		b.WriteString(RenderTaskLine(t, top))
		if top {
			b.WriteString("  " + RenderAccent("← top priority"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTaskDetail renders a task with its markdown description. Long
// descriptions are truncated unless full is set.
func RenderTaskDetail(t *types.Task, full bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", StatusIcon(t), CategoryStyle.Render(t.Name))
	fmt.Fprintf(&b, "%sID:       %s (%s)\n", TreeLast, t.ID, idgen.ShortID(t.ID))
	fmt.Fprintf(&b, "%sPriority: %s\n", TreeLast, RenderPriority(t.Priority))
	fmt.Fprintf(&b, "%sStatus:   %s\n", TreeLast, t.Status)
	if t.Deadline != "" {
		fmt.Fprintf(&b, "%sDeadline: %s\n", TreeLast, t.Deadline)
	}
	fmt.Fprintf(&b, "%sCreated:  %s\n", TreeLast, t.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%sUpdated:  %s\n", TreeLast, t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if desc := strings.TrimSpace(t.Description); desc != "" {
		if !full {
			desc = ElideLines(desc, DefaultMaxLines, DefaultContextLines)
		}
		b.WriteString("\n")
		b.WriteString(RenderMarkdown(desc))
		if !strings.HasSuffix(desc, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// RenderProfile renders the signed-in user's profile.
func RenderProfile(u *types.User) string {
	if u == nil {
		return RenderMuted("No profile.") + "\n"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", RenderCategory("Profile"))
	row := func(label, value string) {
		if value == "" {
			value = RenderMuted("(not set)")
		}
		fmt.Fprintf(&b, "  %-9s %s\n", label+":", value)
	}
	row("Name", u.Name)
	row("Username", u.Username)
	row("Email", u.Email)
	row("Phone", u.PhoneNumber)
	row("Photo", u.ProfilePictureURL)
	return b.String()
}
