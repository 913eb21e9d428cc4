package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/cloudsbay/tasker/internal/account"
	"github.com/cloudsbay/tasker/internal/auth"
	"github.com/cloudsbay/tasker/internal/prioritize"
	"github.com/cloudsbay/tasker/internal/types"
	"github.com/cloudsbay/tasker/internal/ui"
)

const watchShutdownTimeout = 10 * time.Second

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "tasks",
	Short:   "Keep the task list and top task up to date",
	Long: `Show the task list and the model's top pick, refreshing on the
configured interval (refresh.interval, two minutes by default).

Profile changes made by other tasker processes appear immediately, and a
login or logout in another terminal is picked up from the session file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		// Signals are handled by the graceful shutdown below, not by the
		// command context.
		ctx, cancel := context.WithCancel(context.WithoutCancel(cmd.Context()))
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return renderLoop(gctx, a, cmd.OutOrStdout())
		})
		g.Go(func() error {
			return auth.WatchSession(gctx, a.sessionPath, a.logger, func() {
				if err := a.account.CheckSession(gctx); err != nil {
					a.logger.Warn("session check failed", "err", err)
				}
				syncRefresh(gctx, a)
			})
		})
		syncRefresh(gctx, a)

		var groupErr error
		finished := make(chan struct{})
		go func() {
			groupErr = g.Wait()
			close(finished)
		}()

		wait := gfshutdown.GracefulShutdown(context.Background(), watchShutdownTimeout, map[string]gfshutdown.Operation{
			"refresh": func(context.Context) error {
				a.tasks.Stop()
				return nil
			},
			"watchers": func(ctx context.Context) error {
				cancel()
				select {
				case <-finished:
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		})

		select {
		case code := <-wait:
			if code != 0 {
				return fmt.Errorf("shutdown finished with exit code %d", code)
			}
			return nil
		case <-finished:
			a.tasks.Stop()
			return groupErr
		}
	},
}

// syncRefresh runs the refresh cycle exactly while someone is signed in.
// A sign-out or a switch to another user clears everything published for
// the previous owner before anything new is loaded.
func syncRefresh(ctx context.Context, a *app) {
	a.refreshMu.Lock()
	defer a.refreshMu.Unlock()

	owner, signedIn := a.account.OwnerID()
	running := a.tasks.Running()
	switch {
	case !signedIn:
		a.tasks.Stop()
		a.tasks.Reset()
		a.refreshOwner = ""
		return
	case running && owner == a.refreshOwner:
		return
	case running:
		a.logger.Debug("signed-in user changed, restarting refresh", "owner", owner)
		a.tasks.Stop()
		a.tasks.Reset()
	}
	a.refreshOwner = owner
	if err := a.tasks.Start(ctx); err != nil {
		a.logger.Warn("could not start refresh", "err", err)
	}
}

// watchFrame is everything one screen shows.
type watchFrame struct {
	Auth    account.AuthState `json:"-"`
	State   string            `json:"state"`
	Profile *types.User       `json:"profile,omitempty"`
	Tasks   []*types.Task     `json:"tasks"`
	Top     *types.Task       `json:"top,omitempty"`
	Status  prioritize.Status `json:"-"`
	Phase   string            `json:"prioritization"`
	Message string            `json:"message,omitempty"`
	At      time.Time         `json:"at"`
}

// renderLoop redraws whenever any published value changes.
func renderLoop(ctx context.Context, a *app, w io.Writer) error {
	tasksCh, stopTasks := a.tasks.Tasks().Subscribe()
	defer stopTasks()
	topCh, stopTop := a.tasks.Highest().Subscribe()
	defer stopTop()
	statusCh, stopStatus := a.tasks.Status().Subscribe()
	defer stopStatus()
	profileCh, stopProfile := a.account.Profile().Subscribe()
	defer stopProfile()
	authCh, stopAuth := a.account.AuthState().Subscribe()
	defer stopAuth()

	var f watchFrame
	for {
		select {
		case <-ctx.Done():
			return nil
		case f.Tasks = <-tasksCh:
		case f.Top = <-topCh:
		case f.Status = <-statusCh:
		case f.Profile = <-profileCh:
		case f.Auth = <-authCh:
		}
		f.At = time.Now()
		if err := drawFrame(w, &f); err != nil {
			return err
		}
	}
}

func drawFrame(w io.Writer, f *watchFrame) error {
	f.State = f.Auth.String()
	f.Phase = f.Status.Phase.String()
	f.Message = f.Status.Message
	if jsonOutput {
		return outputJSON(w, f)
	}

	var b strings.Builder
	if ui.IsTerminal() {
		b.WriteString("\033[H\033[2J")
	}
	header := "tasker"
	if f.Profile != nil {
		header += "  " + ui.RenderMuted(f.Profile.Email)
	}
	fmt.Fprintf(&b, "%s  %s\n", ui.RenderCategory(header), ui.RenderMuted(f.At.Format("15:04:05")))
	b.WriteString(ui.RenderSeparator() + "\n")

	if f.Auth.Phase != account.PhaseAuthenticated {
		fmt.Fprintf(&b, "%s\n", ui.RenderWarn("Not signed in ("+f.State+"). Run 'tasker login' in another terminal."))
		_, err := io.WriteString(w, b.String())
		return err
	}

	switch f.Status.Phase {
	case prioritize.PhaseLoading:
		b.WriteString(ui.RenderMuted("Prioritizing…") + "\n")
	case prioritize.PhaseError:
		fmt.Fprintf(&b, "%s %s\n", ui.RenderFailIcon(), ui.RenderFail(f.Status.Message))
	case prioritize.PhaseSuccess:
		if f.Top != nil {
			fmt.Fprintf(&b, "Next up: %s\n", ui.RenderAccent(f.Top.Name))
		} else {
			b.WriteString(ui.RenderMuted("No task picked.") + "\n")
		}
	}
	b.WriteString("\n")

	var topID string
	if f.Top != nil {
		topID = f.Top.ID
	}
	b.WriteString(ui.RenderTaskList(types.SortForDisplay(f.Tasks), topID))
	_, err := io.WriteString(w, b.String())
	return err
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
