package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setting reads key with the getter matching want's type.
func setting(key string, want any) any {
	switch want.(type) {
	case bool:
		return GetBool(key)
	case int:
		return GetInt(key)
	case time.Duration:
		return GetDuration(key)
	default:
		return GetString(key)
	}
}

func TestDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatal(err)
	}
	defaults := map[string]any{
		"storage.backend":    "dolt",
		"dolt.database":      "tasker",
		"dolt.server":        false,
		"dolt.port":          3307,
		"ai.model":           DefaultAIModel,
		"ai.match-mode":      "exact",
		"ai.max-tokens":      256,
		"refresh.interval":   2 * time.Minute,
		"objectstore.bucket": "profile_pictures",
		"auth.session-ttl":   720 * time.Hour,
		"nats.enabled":       true,
	}
	for key, want := range defaults {
		if got := setting(key, want); got != want {
			t.Errorf("%s = %v, want %v", key, got, want)
		}
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	cases := []struct {
		env, value, key string
		want            any
	}{
		{"TASKER_AI_MODEL", "claude-test", "ai.model", "claude-test"},
		{"TASKER_AI_MATCH_MODE", "lenient", "ai.match-mode", "lenient"},
		{"TASKER_DOLT_SERVER", "true", "dolt.server", true},
		{"TASKER_REFRESH_INTERVAL", "30s", "refresh.interval", 30 * time.Second},
		{"TASKER_STORAGE_BACKEND", "sqlite", "storage.backend", "sqlite"},
		{"TASKER_NATS_ENABLED", "false", "nats.enabled", false},
	}
	for _, c := range cases {
		t.Run(c.env, func(t *testing.T) {
			t.Setenv(c.env, c.value)
			if err := Initialize(); err != nil {
				t.Fatal(err)
			}
			if got := setting(c.key, c.want); got != c.want {
				t.Errorf("%s=%s: %s = %v, want %v", c.env, c.value, c.key, got, c.want)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	configContent := `
storage:
  backend: sqlite
ai:
  model: from-file
refresh:
  interval: 45s
`
	taskerDir := filepath.Join(tmpDir, ".tasker")
	if err := os.MkdirAll(taskerDir, 0750); err != nil {
		t.Fatalf("failed to create .tasker directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(taskerDir, "config.yaml"), []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Chdir(tmpDir)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	if got := GetString("storage.backend"); got != "sqlite" {
		t.Errorf("GetString(storage.backend) = %q, want sqlite", got)
	}
	if got := AIModel(); got != "from-file" {
		t.Errorf("AIModel() = %q, want from-file", got)
	}
	if got := RefreshInterval(); got != 45*time.Second {
		t.Errorf("RefreshInterval() = %v, want 45s", got)
	}
	if ConfigFileUsed() == "" {
		t.Error("ConfigFileUsed() is empty after loading a file")
	}

	// Environment overrides the file.
	t.Setenv("TASKER_AI_MODEL", "from-env")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := AIModel(); got != "from-env" {
		t.Errorf("AIModel() with env = %q, want from-env", got)
	}
}

func TestRefreshIntervalFloor(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	Set("refresh.interval", "10ms")
	if got := RefreshInterval(); got != 2*time.Minute {
		t.Errorf("RefreshInterval() = %v, want fallback 2m", got)
	}
}

func TestPathIn(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	Set("data-dir", "/var/lib/tasker")
	if got := PathIn("sqlite.path", "tasker.db"); got != filepath.Join("/var/lib/tasker", "tasker.db") {
		t.Errorf("PathIn default = %q", got)
	}
	Set("sqlite.path", "/tmp/x.db")
	if got := PathIn("sqlite.path", "tasker.db"); got != "/tmp/x.db" {
		t.Errorf("PathIn explicit = %q", got)
	}
}

func TestGetStringSliceSplitsCommas(t *testing.T) {
	t.Setenv("TASKER_NOTIFY_CHANNELS", "log, webhook")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	got := GetStringSlice("notify.channels")
	if len(got) != 2 || got[0] != "log" || got[1] != "webhook" {
		t.Errorf("GetStringSlice(notify.channels) = %v", got)
	}
}

func TestNilViperBehavior(t *testing.T) {
	savedV := v
	v = nil
	defer func() { v = savedV }()

	if got := GetString("any-key"); got != "" {
		t.Errorf("GetString with nil viper = %q, want \"\"", got)
	}
	if got := GetBool("any-key"); got != false {
		t.Errorf("GetBool with nil viper = %v, want false", got)
	}
	if got := GetInt("any-key"); got != 0 {
		t.Errorf("GetInt with nil viper = %d, want 0", got)
	}
	if got := GetDuration("any-key"); got != 0 {
		t.Errorf("GetDuration with nil viper = %v, want 0", got)
	}
	if got := GetStringSlice("any-key"); got == nil || len(got) != 0 {
		t.Errorf("GetStringSlice with nil viper = %v, want empty slice", got)
	}
	if got := AllSettings(); got == nil || len(got) != 0 {
		t.Errorf("AllSettings with nil viper = %v, want empty map", got)
	}
	Set("any-key", "value") // must not panic
}
