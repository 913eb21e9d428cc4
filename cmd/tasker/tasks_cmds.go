package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cloudsbay/tasker/internal/prioritize"
	"github.com/cloudsbay/tasker/internal/timeparsing"
	"github.com/cloudsbay/tasker/internal/types"
	"github.com/cloudsbay/tasker/internal/ui"
)

var addCmd = &cobra.Command{
	Use:     "add [name]",
	GroupID: "tasks",
	Short:   "Add a task",
	Long: `Add a pending task for the signed-in user.

Deadlines such as "tomorrow", "next friday" or "+3d" are stored as
YYYY-MM-DD. Anything else is kept as typed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		draft := taskDraft{Priority: string(types.PriorityMedium)}
		draft.Description, _ = cmd.Flags().GetString("description")
		draft.Deadline, _ = cmd.Flags().GetString("deadline")
		if p, _ := cmd.Flags().GetString("priority"); p != "" {
			draft.Priority = p
		}
		if len(args) == 1 {
			draft.Name = args[0]
		}

		useForm, _ := cmd.Flags().GetBool("form")
		if useForm || (draft.Name == "" && interactive()) {
			if err := runAddForm(&draft); err != nil {
				return err
			}
		}
		task, err := draft.task(time.Now())
		if err != nil {
			return err
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.tasks.AddTask(cmd.Context(), task); err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), task)
		}
		if !quietFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Added %s\n", ui.RenderPassIcon(), ui.RenderTaskLine(task, false))
		}
		return nil
	},
}

// taskDraft is the user's input before it becomes a task.
type taskDraft struct {
	Name        string
	Description string
	Deadline    string
	Priority    string
}

func (d taskDraft) task(now time.Time) (*types.Task, error) {
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("task name is required")
	}
	priority, ok := types.ParsePriority(d.Priority)
	if !ok {
		return nil, fmt.Errorf("invalid priority %q (want High, Medium or Low)", d.Priority)
	}
	deadline, _ := timeparsing.NormalizeDeadline(strings.TrimSpace(d.Deadline), now)
	return &types.Task{
		Name:        strings.TrimSpace(d.Name),
		Description: d.Description,
		Deadline:    deadline,
		Priority:    priority,
		Status:      types.StatusPending,
	}, nil
}

var listCmd = &cobra.Command{
	Use:     "list",
	GroupID: "tasks",
	Short:   "List tasks",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pendingOnly, _ := cmd.Flags().GetBool("pending")
		withTop, _ := cmd.Flags().GetBool("prioritize")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if withTop {
			err = a.tasks.LoadTasks(cmd.Context())
		} else {
			err = a.tasks.LoadAllTasks(cmd.Context())
		}
		if err != nil {
			return err
		}

		list := a.tasks.Tasks().Get()
		if pendingOnly {
			list = types.Pending(list)
		}
		list = types.SortForDisplay(list)

		var topID string
		if top := a.tasks.Highest().Get(); withTop && top != nil {
			topID = top.ID
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
				"tasks":  list,
				"top_id": topID,
			})
		}
		fmt.Fprint(cmd.OutOrStdout(), ui.RenderTaskList(list, topID))
		if s := a.tasks.Status().Get(); withTop && s.Phase == prioritize.PhaseError {
			fmt.Fprintf(cmd.ErrOrStderr(), "%s prioritization failed: %s\n", ui.RenderWarnIcon(), s.Message)
		}
		return nil
	},
}

var topCmd = &cobra.Command{
	Use:     "top",
	GroupID: "tasks",
	Short:   "Ask the model which pending task to do next",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.tasks.LoadMostPrioritizedTask(cmd.Context()); err != nil {
			return err
		}
		status := a.tasks.Status().Get()
		if status.Phase == prioritize.PhaseError {
			return fmt.Errorf("prioritization failed: %s", status.Message)
		}
		top := a.tasks.Highest().Get()
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), map[string]interface{}{
				"task":    top,
				"pending": len(status.Tasks),
			})
		}
		switch {
		case len(status.Tasks) == 0:
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderMuted("No pending tasks."))
		case top == nil:
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderWarn("The model's answer did not name a pending task."))
		default:
			fmt.Fprintln(cmd.OutOrStdout(), ui.RenderTaskLine(top, true))
		}
		return nil
	},
}

var completeCmd = &cobra.Command{
	Use:     "complete <id>",
	Aliases: []string{"done"},
	GroupID: "tasks",
	Short:   "Mark a task complete",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.tasks.LoadAllTasks(cmd.Context()); err != nil {
			return err
		}
		task, err := a.tasks.Find(args[0])
		if err != nil {
			return err
		}
		if err := a.tasks.CompleteTask(cmd.Context(), task); err != nil {
			return err
		}
		if jsonOutput {
			done := a.tasks.Tasks().Get()
			return outputJSON(cmd.OutOrStdout(), types.FindByID(done, task.ID))
		}
		if !quietFlag {
			fmt.Fprintf(cmd.OutOrStdout(), "%s Completed %s\n", ui.RenderPassIcon(), task.Name)
		}
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:     "show <id>",
	GroupID: "tasks",
	Short:   "Show a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		full, _ := cmd.Flags().GetBool("full")
		noPager, _ := cmd.Flags().GetBool("no-pager")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.tasks.LoadAllTasks(cmd.Context()); err != nil {
			return err
		}
		task, err := a.tasks.Find(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), task)
		}
		return ui.Page(cmd.OutOrStdout(), ui.RenderTaskDetail(task, full), ui.PagerOptions{NoPager: noPager})
	},
}

func init() {
	addCmd.Flags().StringP("description", "d", "", "Task description (markdown)")
	addCmd.Flags().String("deadline", "", "Deadline, e.g. 2025-07-01, tomorrow, +3d")
	addCmd.Flags().StringP("priority", "p", "", "Priority: High, Medium or Low (default Medium)")
	addCmd.Flags().Bool("form", false, "Fill in the task with an interactive form")

	listCmd.Flags().Bool("pending", false, "Only pending tasks")
	listCmd.Flags().Bool("prioritize", false, "Also ask the model for the top task and mark it")

	showCmd.Flags().Bool("full", false, "Show the whole description")
	showCmd.Flags().Bool("no-pager", false, "Disable the pager")

	rootCmd.AddCommand(addCmd, listCmd, topCmd, completeCmd, showCmd)
}
