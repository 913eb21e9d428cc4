package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cloudsbay/tasker/internal/account"
	"github.com/cloudsbay/tasker/internal/auth"
	"github.com/cloudsbay/tasker/internal/broker"
	"github.com/cloudsbay/tasker/internal/config"
	"github.com/cloudsbay/tasker/internal/eventbus"
	"github.com/cloudsbay/tasker/internal/notification"
	"github.com/cloudsbay/tasker/internal/objectstore"
	"github.com/cloudsbay/tasker/internal/prioritize"
	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/storage/factory"
	"github.com/cloudsbay/tasker/internal/tasks"
	"github.com/cloudsbay/tasker/internal/telemetry"
)

// app is the set of services one command runs against.
type app struct {
	store       storage.Storage
	broker      *broker.Broker
	objects     *objectstore.Store
	provider    *auth.Provider
	account     *account.Coordinator
	engine      *prioritize.Engine
	tasks       *tasks.Coordinator
	sessionPath string
	logger      *slog.Logger

	// refreshOwner is the owner the running refresh cycle was started for.
	refreshMu    sync.Mutex
	refreshOwner string
}

// profileFeed is what the account coordinator watches and the store publishes to.
type profileFeed interface {
	eventbus.Publisher
	account.ProfileFeed
}

// openApp wires storage, the broker, authentication and both coordinators
// from configuration, then restores any persisted session.
func openApp(ctx context.Context) (*app, error) {
	a := &app{logger: logger}

	base, err := factory.NewFromConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	var feed profileFeed
	a.broker = startBroker(a.logger)
	if a.broker != nil {
		nb, err := eventbus.NewNATSBus(a.broker.Conn(), a.logger)
		if err != nil {
			a.logger.Warn("NATS profile feed unavailable, using in-process bus", "err", err)
		} else {
			feed = nb
		}
		objs, err := objectstore.Open(ctx, a.broker.Conn(), config.GetString("objectstore.bucket"),
			objectstore.WithPublicURL(config.GetString("objectstore.public-url")),
			objectstore.WithLogger(a.logger))
		if err != nil {
			a.logger.Warn("object store unavailable, profile photos disabled", "err", err)
		} else {
			a.objects = objs
		}
	}
	if feed == nil {
		bus := eventbus.New()
		bus.SetLogger(a.logger)
		feed = bus
	}
	a.store = eventbus.NewNotifyingStore(telemetry.WrapStorage(base), feed, a.logger)

	secret, err := loadSecret()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sessionPath = config.PathIn("auth.session-file", "session.json")
	a.provider, err = auth.NewProvider(a.store, auth.NewFileSessionStore(a.sessionPath), secret,
		auth.WithSessionTTL(config.GetDuration("auth.session-ttl")),
		auth.WithResetTTL(config.GetDuration("auth.reset-ttl")),
		auth.WithNotifier(newNotifier(a.logger)),
		auth.WithLogger(a.logger))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("auth: %w", err)
	}

	accountOpts := []account.Option{account.WithLogger(a.logger)}
	if a.objects != nil {
		accountOpts = append(accountOpts, account.WithObjectStore(a.objects))
	}
	a.account = account.New(a.provider, a.store, feed, accountOpts...)

	a.engine, err = newEngine(a.logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tasks = tasks.New(a.store, a.engine, a.account.OwnerID,
		tasks.WithInterval(config.RefreshInterval()),
		tasks.WithLogger(a.logger))

	if err := a.account.CheckSession(ctx); err != nil {
		a.logger.Warn("could not restore session", "err", err)
	}
	return a, nil
}

// startBroker connects to nats.url, then to a server already listening on
// the local port, and finally embeds one. A nil broker means profile
// events stay in-process.
func startBroker(logger *slog.Logger) *broker.Broker {
	if !config.GetBool("nats.enabled") {
		return nil
	}
	if url := config.GetString("nats.url"); url != "" {
		b, err := broker.Start(broker.Config{URL: url})
		if err != nil {
			logger.Warn("NATS unreachable", "url", url, "err", err)
			return nil
		}
		return b
	}

	port := config.GetInt("nats.port")
	if port <= 0 {
		port = broker.DefaultPort
	}
	if b, err := broker.Start(broker.Config{URL: fmt.Sprintf("nats://127.0.0.1:%d", port)}); err == nil {
		return b
	}
	b, err := broker.Start(broker.Config{
		Port:     port,
		StoreDir: config.PathIn("nats.store-dir", "nats"),
	})
	if err != nil {
		logger.Warn("embedded NATS failed to start", "err", err)
		return nil
	}
	logger.Debug("embedded NATS started", "url", b.URL())
	return b
}

// loadSecret returns auth.secret, or the key kept in the data directory,
// creating it on first use. The memory backend gets a throwaway key.
func loadSecret() ([]byte, error) {
	if s := config.GetString("auth.secret"); s != "" {
		return []byte(s), nil
	}
	if config.GetString("storage.backend") == factory.BackendMemory {
		return randomKey()
	}

	path := filepath.Join(config.DataDir(), "auth.key")
	data, err := os.ReadFile(path) // #nosec G304 - path is under the data directory
	if err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			return []byte(key), nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	key, err := randomKey()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(path, key, 0o600); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return key, nil
}

func randomKey() ([]byte, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate auth key: %w", err)
	}
	return []byte(hex.EncodeToString(buf)), nil
}

func newNotifier(l *slog.Logger) *notification.Dispatcher {
	return notification.NewDispatcher(config.GetStringSlice("notify.channels"),
		notification.WithWebhookURL(config.GetString("notify.webhook-url")),
		notification.WithOutput(os.Stderr),
		notification.WithLogger(l))
}

// newEngine builds the prioritization engine. Without an API key every
// request fails, and the failure is published on the engine status.
func newEngine(l *slog.Logger) (*prioritize.Engine, error) {
	mode, err := prioritize.ParseMatchMode(config.GetString("ai.match-mode"))
	if err != nil {
		return nil, err
	}
	opts := []prioritize.EngineOption{
		prioritize.WithModel(config.AIModel()),
		prioritize.WithMatchMode(mode),
		prioritize.WithLogger(l),
	}
	if path := config.GetString("ai.prompt-file"); path != "" {
		tmpl, err := prioritize.LoadTemplateFile(path)
		if err != nil {
			return nil, err
		}
		opts = append(opts, prioritize.WithTemplate(tmpl))
	}

	genOpts := []prioritize.AnthropicOption{prioritize.WithMaxTokens(config.GetInt("ai.max-tokens"))}
	if config.GetBool("ai.audit") {
		genOpts = append(genOpts, prioritize.WithAudit(config.DataDir(), currentActor()))
	}
	var gen prioritize.Generator
	gen, err = prioritize.NewAnthropicGenerator(config.GetString("ai.api-key"), genOpts...)
	if err != nil {
		l.Debug("text generation disabled", "err", err)
		gen = unavailableGenerator{err: err}
	}
	return prioritize.NewEngine(gen, opts...), nil
}

// unavailableGenerator fails every request with the configuration error.
type unavailableGenerator struct{ err error }

func (g unavailableGenerator) Generate(context.Context, string, string) (string, error) {
	return "", g.err
}

func currentActor() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "tasker"
}

// requireSession fails when nobody is signed in.
func (a *app) requireSession() (*auth.Session, error) {
	sess, ok := a.account.Session()
	if !ok {
		return nil, fmt.Errorf("%w: run 'tasker login' first", auth.ErrNoSession)
	}
	return sess, nil
}

// Close releases everything openApp acquired. Safe on a partially built app.
func (a *app) Close() {
	if a.tasks != nil {
		a.tasks.Stop()
	}
	if a.account != nil {
		a.account.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("close storage", "err", err)
		}
	}
	if a.broker != nil {
		a.broker.Shutdown()
	}
}
