package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cloudsbay/tasker/internal/broker"
	"github.com/cloudsbay/tasker/internal/config"
	"github.com/cloudsbay/tasker/internal/ui"
)

type statusReport struct {
	Backend      string         `json:"backend"`
	DataDir      string         `json:"data_dir"`
	ConfigFile   string         `json:"config_file,omitempty"`
	Model        string         `json:"model"`
	Auth         string         `json:"auth"`
	Email        string         `json:"email,omitempty"`
	Broker       *broker.Health `json:"broker,omitempty"`
	PhotoBucket  string         `json:"photo_bucket,omitempty"`
	Subscribed   bool           `json:"profile_feed"`
	RefreshEvery string         `json:"refresh_interval"`
}

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "setup",
	Short:   "Show storage, broker and session status",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		r := statusReport{
			Backend:      config.GetString("storage.backend"),
			DataDir:      config.DataDir(),
			ConfigFile:   config.ConfigFileUsed(),
			Model:        a.engine.Model(),
			Auth:         a.account.AuthState().Get().String(),
			Subscribed:   a.account.Subscribed(),
			RefreshEvery: config.RefreshInterval().String(),
		}
		if sess, ok := a.account.Session(); ok {
			r.Email = sess.Email
		}
		if a.broker != nil {
			h := a.broker.Health()
			r.Broker = &h
		}
		if a.objects != nil {
			r.PhotoBucket = a.objects.Bucket()
		}

		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), r)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", ui.RenderCategory("tasker status"))
		fmt.Fprintf(out, "  Storage:  %s (%s)\n", r.Backend, r.DataDir)
		if r.ConfigFile != "" {
			fmt.Fprintf(out, "  Config:   %s\n", r.ConfigFile)
		}
		fmt.Fprintf(out, "  Model:    %s, refresh every %s\n", r.Model, r.RefreshEvery)
		if r.Email != "" {
			fmt.Fprintf(out, "  Account:  %s (%s)\n", r.Email, r.Auth)
		} else {
			fmt.Fprintf(out, "  Account:  %s\n", r.Auth)
		}
		if r.Broker != nil {
			mode := "external"
			if a.broker.Embedded() {
				mode = "embedded"
			}
			fmt.Fprintf(out, "  NATS:     %s %s at %s\n", r.Broker.Status, mode, r.Broker.URL)
		} else {
			fmt.Fprintf(out, "  NATS:     %s\n", ui.RenderMuted("disabled, profile events stay in this process"))
		}
		if r.PhotoBucket != "" {
			fmt.Fprintf(out, "  Photos:   bucket %s\n", r.PhotoBucket)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
