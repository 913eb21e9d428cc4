package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudsbay/tasker/internal/config"
	"github.com/cloudsbay/tasker/internal/types"
)

// TestMain keeps tests away from the developer's config and data.
func TestMain(m *testing.M) {
	tmp, err := os.MkdirTemp("", "tasker-cmd-tests-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create temp dir: %v\n", err)
		os.Exit(1)
	}
	oldWD, _ := os.Getwd()
	_ = os.Chdir(tmp)
	_ = os.Setenv("HOME", tmp)
	_ = os.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "xdg-config"))
	_ = os.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "xdg-data"))
	_ = os.Setenv("ANTHROPIC_API_KEY", "")
	_ = os.Setenv("TASKER_NO_PAGER", "1")

	code := m.Run()

	_ = os.Chdir(oldWD)
	_ = os.RemoveAll(tmp)
	os.Exit(code)
}

// useTestConfig points every command at a fresh sqlite database in a temp
// data directory, with NATS and text generation disabled.
func useTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	config.Set("data-dir", dir)
	config.Set("storage.backend", "sqlite")
	config.Set("sqlite.path", "")
	config.Set("auth.session-file", "")
	config.Set("auth.secret", "")
	config.Set("nats.enabled", false)
	config.Set("ai.api-key", "")
	config.Set("notify.channels", []string{"log"})
	config.Set("json", false)
	return dir
}

// resetFlags restores every flag to its default so runs do not leak into
// each other.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// run executes the CLI with args and stdin, returning stdout.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	jsonOutput, verboseFlag, quietFlag, backendFlag = false, false, false, ""
	config.Set("json", false)

	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func mustRun(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	out, err := run(t, stdin, args...)
	require.NoError(t, err, "tasker %s\n%s", strings.Join(args, " "), out)
	return out
}

func register(t *testing.T, email string) {
	t.Helper()
	mustRun(t, "secret123\n", "register", "--email", email, "--name", "Ann",
		"--username", "ann", "--phone", "5550100200", "--password-stdin", "--json")
}

func TestTaskFlow(t *testing.T) {
	useTestConfig(t)
	register(t, "ann@example.com")

	var who map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "whoami", "--json")), &who))
	assert.Equal(t, "ann@example.com", who["email"])
	assert.Equal(t, "authenticated", who["state"])

	var added types.Task
	out := mustRun(t, "", "add", "Pay bills", "--deadline", "2025-07-01", "-p", "high", "--json")
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.Equal(t, types.PriorityHigh, added.Priority)
	assert.Equal(t, "2025-07-01", added.Deadline)
	assert.Equal(t, types.StatusPending, added.Status)

	mustRun(t, "", "add", "Read book", "-d", "chapter *three*", "--deadline", "after the launch party")

	var listed struct {
		Tasks []*types.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "list", "--json")), &listed))
	require.Len(t, listed.Tasks, 2)
	assert.Equal(t, "Pay bills", listed.Tasks[0].Name, "high priority first")
	assert.Equal(t, "after the launch party", listed.Tasks[1].Deadline, "unrecognised deadline kept verbatim")

	var shown types.Task
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "show", added.ID[:8], "--json")), &shown))
	assert.Equal(t, added.ID, shown.ID)

	mustRun(t, "", "complete", added.ID)
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "list", "--pending", "--json")), &listed))
	require.Len(t, listed.Tasks, 1)
	assert.Equal(t, "Read book", listed.Tasks[0].Name)

	// Without an API key the request fails and the command reports it.
	_, err := run(t, "", "top")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prioritization failed")

	mustRun(t, "", "logout")
	_, err = run(t, "", "list")
	require.Error(t, err)
	assert.Equal(t, "not_signed_in", errorCode(err))
}

func TestTasksAreScopedToTheSignedInUser(t *testing.T) {
	useTestConfig(t)
	register(t, "ann@example.com")
	mustRun(t, "", "add", "Ann's task")
	mustRun(t, "", "logout")

	register(t, "bob@example.com")
	var listed struct {
		Tasks []*types.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "list", "--json")), &listed))
	assert.Empty(t, listed.Tasks)
}

func TestLoginAndProfile(t *testing.T) {
	useTestConfig(t)
	register(t, "ann@example.com")
	mustRun(t, "", "logout")

	_, err := run(t, "wrong-password\n", "login", "--email", "ann@example.com", "--password-stdin")
	require.Error(t, err)
	assert.Equal(t, "invalid_credentials", errorCode(err))

	out := mustRun(t, "secret123\n", "login", "--email", "ann@example.com", "--password-stdin")
	assert.Contains(t, out, "Signed in as ann@example.com")

	var u types.User
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "profile", "set", "name", "Ann Lee", "--json")), &u))
	assert.Equal(t, "Ann Lee", u.Name)
	assert.Equal(t, "+15550100200", u.PhoneNumber)

	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "profile", "set", "phone", "2025550123", "--country-code", "44", "--json")), &u))
	assert.Equal(t, "+442025550123", u.PhoneNumber)

	_, err = run(t, "", "profile", "set", "username", "x")
	require.Error(t, err)

	_, err = run(t, "", "profile", "photo", filepath.Join(t.TempDir(), "missing.jpg"))
	require.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	useTestConfig(t)
	_, err := run(t, "secret123\n", "register", "--email", "ann@example.com",
		"--username", "ann", "--phone", "555", "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phone")

	register(t, "ann@example.com")
	mustRun(t, "", "logout")
	_, err = run(t, "secret123\n", "register", "--email", "ann@example.com",
		"--username", "ann2", "--phone", "5550100200", "--password-stdin")
	require.Error(t, err)
	assert.Equal(t, "email_in_use", errorCode(err))
}

func TestDeleteAccount(t *testing.T) {
	useTestConfig(t)
	register(t, "ann@example.com")

	_, err := run(t, "", "profile", "delete")
	require.Error(t, err, "requires --yes")

	mustRun(t, "", "profile", "delete", "--yes")
	_, err = run(t, "", "whoami")
	require.Error(t, err)
	_, err = run(t, "secret123\n", "login", "--email", "ann@example.com", "--password-stdin")
	require.Error(t, err)
}

func TestResetPasswordWithToken(t *testing.T) {
	useTestConfig(t)
	register(t, "ann@example.com")
	mustRun(t, "", "logout")

	// An unknown address looks the same as a known one.
	mustRun(t, "", "reset-password", "nobody@example.com")
	mustRun(t, "", "reset-password", "ann@example.com")

	_, err := run(t, "newsecret\n", "reset-password", "confirm", "--token", "not-a-token", "--password-stdin")
	require.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	useTestConfig(t)
	config.Set("ai.api-key", "sk-test")
	t.Cleanup(func() { config.Set("ai.model", config.DefaultAIModel) })

	out := mustRun(t, "", "config", "list")
	assert.Contains(t, out, "ai.api-key = ********")
	assert.NotContains(t, out, "sk-test")
	assert.Contains(t, out, "storage.backend = sqlite")

	assert.Equal(t, "sqlite\n", mustRun(t, "", "config", "get", "storage.backend"))

	mustRun(t, "", "config", "set", "ai.model", "claude-test")
	path := strings.TrimSpace(mustRun(t, "", "config", "path"))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "model: claude-test")
}

func TestStatusWithoutBroker(t *testing.T) {
	useTestConfig(t)
	var r statusReport
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "status", "--json")), &r))
	assert.Equal(t, "sqlite", r.Backend)
	assert.Equal(t, "unauthenticated", r.Auth)
	assert.Nil(t, r.Broker)
	assert.False(t, r.Subscribed)
}

func TestVersion(t *testing.T) {
	out := mustRun(t, "", "version")
	assert.Contains(t, out, "tasker "+Version+" ("+Build)

	var info versionInfo
	require.NoError(t, json.Unmarshal([]byte(mustRun(t, "", "version", "--json")), &info))
	assert.Equal(t, Version, info.Version)
}
