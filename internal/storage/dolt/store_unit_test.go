package dolt

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestConfigDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		db   string
		want string
	}{
		{
			name: "no password",
			cfg:  Config{ServerUser: "root", ServerHost: "127.0.0.1", ServerPort: 3307},
			db:   "tasker",
			want: "root@tcp(127.0.0.1:3307)/tasker?parseTime=true",
		},
		{
			name: "password and tls",
			cfg:  Config{ServerUser: "tasker", ServerPassword: "secret", ServerHost: "db.example.com", ServerPort: 3306, ServerTLS: true},
			db:   "tasks",
			want: "tasker:secret@tcp(db.example.com:3306)/tasks?parseTime=true&tls=true",
		},
		{
			name: "no database selected",
			cfg:  Config{ServerUser: "root", ServerHost: "localhost", ServerPort: 3307},
			want: "root@tcp(localhost:3307)/?parseTime=true",
		},
		{
			name: "ipv6 host",
			cfg:  Config{ServerUser: "root", ServerHost: "::1", ServerPort: 3307},
			db:   "tasker",
			want: "root@tcp([::1]:3307)/tasker?parseTime=true",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.dsn(tt.db); got != tt.want {
				t.Errorf("dsn() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	t.Setenv("TASKER_DOLT_PASSWORD", "from-env")

	cfg := &Config{ServerMode: true}
	cfg.withDefaults()
	if cfg.Database != "tasker" || cfg.ServerHost != "127.0.0.1" || cfg.ServerPort != DefaultSQLPort || cfg.ServerUser != "root" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.ServerPassword != "from-env" {
		t.Errorf("password = %q, want from-env", cfg.ServerPassword)
	}

	explicit := &Config{ServerMode: true, ServerPassword: "flag"}
	explicit.withDefaults()
	if explicit.ServerPassword != "flag" {
		t.Errorf("explicit password overridden: %q", explicit.ServerPassword)
	}

	embeddedCfg := &Config{Path: "/tmp/x"}
	embeddedCfg.withDefaults()
	if embeddedCfg.ServerHost != "" || embeddedCfg.CommitterName != "tasker" {
		t.Errorf("embedded defaults: %+v", embeddedCfg)
	}
}

func TestDatabaseNames(t *testing.T) {
	for _, name := range []string{"tasker", "_scratch", "my-db", "Tasks_2"} {
		if !databaseNameRe.MatchString(name) {
			t.Errorf("%q should be accepted", name)
		}
	}
	for _, name := range []string{"", "1db", "db`; DROP TABLE tasks", "has space", "a.b"} {
		if databaseNameRe.MatchString(name) {
			t.Errorf("%q should be rejected", name)
		}
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	if len(migrations) != 3 {
		t.Fatalf("got %d migrations, want 3", len(migrations))
	}
	for _, m := range migrations {
		if !strings.HasPrefix(m.stmt, "CREATE TABLE IF NOT EXISTS "+m.name+" ") {
			t.Errorf("migration %s: %.40q", m.name, m.stmt)
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, &Config{Database: "bad name"}); err == nil {
		t.Error("expected invalid database name error")
	}
	if _, err := New(ctx, &Config{}); err == nil {
		t.Error("expected missing path error in embedded mode")
	}
}

func TestServerUnreachable(t *testing.T) {
	// Port 1 on loopback is reserved and closed on test hosts.
	_, err := New(context.Background(), &Config{ServerMode: true, ServerHost: "127.0.0.1", ServerPort: 1})
	if err == nil {
		t.Fatal("expected unreachable server error")
	}
}

func TestClosedStore(t *testing.T) {
	s := &DoltStore{}
	if err := s.Close(); err != nil {
		t.Fatalf("Close on empty store: %v", err)
	}
	if _, err := s.ListTasks(context.Background(), "owner"); !errors.Is(err, ErrClosed) {
		t.Errorf("ListTasks on closed store = %v, want ErrClosed", err)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	if isDuplicateKey(nil) {
		t.Error("nil is not a duplicate")
	}
	if !isDuplicateKey(errString("Error 1062 (23000): Duplicate entry 'a@b' for key 'idx_accounts_email_key'")) {
		t.Error("MySQL 1062 should be a duplicate")
	}
}

type errString string

func (e errString) Error() string { return string(e) }
