package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/cloudsbay/tasker/internal/types"
)

// runAddForm fills d through an interactive form. Values already in d are
// the form's defaults.
func runAddForm(d *taskDraft) error {
	priorityOptions := make([]huh.Option[string], 0, len(types.Priorities))
	for _, p := range types.Priorities {
		priorityOptions = append(priorityOptions, huh.NewOption(string(p), string(p)))
	}
	if p, ok := types.ParsePriority(d.Priority); ok {
		d.Priority = string(p)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("What needs doing (required)").
				Placeholder("e.g., Pay the electricity bill").
				Value(&d.Name).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("name is required")
					}
					if len(s) > types.MaxNameLength {
						return fmt.Errorf("name must be %d characters or less", types.MaxNameLength)
					}
					return nil
				}),

			huh.NewText().
				Title("Description").
				Description("Details, markdown allowed (optional)").
				CharLimit(5000).
				Value(&d.Description),

			huh.NewInput().
				Title("Deadline").
				Description("A date or an expression like 'next friday' (optional)").
				Value(&d.Deadline),

			huh.NewSelect[string]().
				Title("Priority").
				Options(priorityOptions...).
				Value(&d.Priority),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("task creation cancelled")
		}
		return fmt.Errorf("form error: %w", err)
	}
	return nil
}
