package main

import (
	"fmt"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.Version=... -X main.Build=... -X main.Commit=...".
var (
	Version = "0.1.0"
	Build   = "dev"
	Commit  = ""
)

type versionInfo struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit,omitempty"`
}

func currentVersion() versionInfo {
	info := versionInfo{Version: Version, Build: Build, Commit: Commit}
	if info.Commit == "" {
		info.Commit = vcsRevision()
	}
	return info
}

// vcsRevision is the revision the go tool stamped into the binary, if any.
func vcsRevision() string {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range bi.Settings {
		if s.Key == "vcs.revision" {
			return s.Value
		}
	}
	return ""
}

func (v versionInfo) String() string {
	if v.Commit == "" {
		return fmt.Sprintf("tasker %s (%s)", v.Version, v.Build)
	}
	commit := v.Commit
	if len(commit) > 12 {
		commit = commit[:12]
	}
	return fmt.Sprintf("tasker %s (%s, %s)", v.Version, v.Build, commit)
}

var versionCmd = &cobra.Command{
	Use:     "version",
	Short:   "Print the tasker version",
	GroupID: "setup",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		info := currentVersion()
		if jsonOutput {
			return outputJSON(cmd.OutOrStdout(), info)
		}
		fmt.Fprintln(cmd.OutOrStdout(), info)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
