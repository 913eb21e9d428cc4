// Package broker runs an embedded NATS server with JetStream for the
// profile feed and the profile-picture object store, or connects to an
// external server when nats.url is set.
package broker

import (
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const (
	// DefaultPort is the default TCP port for the embedded NATS server.
	DefaultPort = 4222

	// DefaultMaxMem is the default JetStream memory limit (256 MiB).
	DefaultMaxMem = 256 << 20

	// DefaultMaxStore is the default JetStream file storage limit (1 GiB).
	DefaultMaxStore = 1 << 30
)

// Config holds configuration for the broker.
type Config struct {
	URL      string // External server; empty starts an embedded one
	Host     string // Embedded listen host (default 127.0.0.1)
	Port     int    // Embedded TCP port; -1 picks a free port
	StoreDir string // JetStream file storage directory
	Token    string // Auth token for client connections
	Name     string // Client connection name
}

// Broker is a NATS connection plus the embedded server behind it, if any.
type Broker struct {
	server *server.Server
	conn   *nats.Conn
	url    string
}

// Start connects to cfg.URL, or starts an embedded server with JetStream
// and connects to it in-process.
func Start(cfg Config) (*Broker, error) {
	if cfg.Name == "" {
		cfg.Name = "tasker"
	}
	connectOpts := []nats.Option{nats.Name(cfg.Name)}
	if cfg.Token != "" {
		connectOpts = append(connectOpts, nats.Token(cfg.Token))
	}

	if cfg.URL != "" {
		nc, err := nats.Connect(cfg.URL, connectOpts...)
		if err != nil {
			return nil, fmt.Errorf("connect to NATS at %s: %w", cfg.URL, err)
		}
		return &Broker{conn: nc, url: cfg.URL}, nil
	}

	if cfg.StoreDir == "" {
		return nil, fmt.Errorf("embedded NATS requires a store directory")
	}
	if err := os.MkdirAll(cfg.StoreDir, 0o700); err != nil {
		return nil, fmt.Errorf("create NATS store dir: %w", err)
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}

	opts := &server.Options{
		ServerName:         "tasker",
		Host:               cfg.Host,
		Port:               cfg.Port,
		JetStream:          true,
		JetStreamMaxMemory: DefaultMaxMem,
		JetStreamMaxStore:  DefaultMaxStore,
		StoreDir:           cfg.StoreDir,
		NoLog:              true,
		NoSigs:             true,
	}
	if cfg.Token != "" {
		opts.Authorization = cfg.Token
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(10 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server failed to become ready within 10 seconds")
	}

	// The in-process dialer skips the loopback socket for our own connection.
	connectOpts = append(connectOpts, nats.InProcessServer(ns))
	nc, err := nats.Connect(ns.ClientURL(), connectOpts...)
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("in-process NATS connection: %w", err)
	}

	return &Broker{server: ns, conn: nc, url: ns.ClientURL()}, nil
}

// Conn returns the broker's NATS connection.
func (b *Broker) Conn() *nats.Conn {
	return b.conn
}

// URL is the address other processes can connect to.
func (b *Broker) URL() string {
	return b.url
}

// Embedded reports whether this process runs the server.
func (b *Broker) Embedded() bool {
	return b.server != nil
}

// Shutdown drains the connection, then stops the embedded server and waits
// for it to exit.
func (b *Broker) Shutdown() {
	if b.conn != nil {
		_ = b.conn.Drain()
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
		b.server.WaitForShutdown()
	}
}

// Health returns a snapshot of the broker's state.
func (b *Broker) Health() Health {
	h := Health{URL: b.url}

	if b.conn == nil || b.conn.IsClosed() {
		h.Status = "stopped"
		return h
	}
	h.Status = "connected"
	if b.server == nil {
		return h
	}

	varz, err := b.server.Varz(nil)
	if err != nil {
		h.Status = "error"
		h.Error = err.Error()
		return h
	}
	h.Status = "running"
	h.Connections = int(varz.Connections)
	h.InMsgs = varz.InMsgs
	h.OutMsgs = varz.OutMsgs
	h.Uptime = varz.Now.Sub(varz.Start).String()

	jsz, err := b.server.Jsz(nil)
	if err == nil && jsz != nil {
		h.JetStream = true
		h.Streams = int(jsz.Streams)
		h.Messages = jsz.Messages
	}
	return h
}

// Health represents a point-in-time health snapshot of the broker.
type Health struct {
	Status      string `json:"status"` // "running", "connected", "stopped", "error"
	URL         string `json:"url"`
	Connections int    `json:"connections"`
	InMsgs      int64  `json:"in_msgs"`
	OutMsgs     int64  `json:"out_msgs"`
	Uptime      string `json:"uptime,omitempty"`
	JetStream   bool   `json:"jetstream"`
	Streams     int    `json:"streams,omitempty"`
	Messages    uint64 `json:"messages,omitempty"`
	Error       string `json:"error,omitempty"`
}
