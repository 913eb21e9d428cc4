// Package notification delivers password-reset codes over the configured
// channels (notify.channels): "log" prints to the terminal, "email" pipes
// through the system mail command, "webhook" POSTs JSON.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ResetPayload is the notification sent when a password reset is requested.
type ResetPayload struct {
	Type      string    `json:"type"` // "password_reset"
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Confirm   string    `json:"confirm"` // CLI command that completes the reset
}

// NewResetPayload builds the payload for email with the given token.
func NewResetPayload(email, token string, expiresAt time.Time) *ResetPayload {
	return &ResetPayload{
		Type:      "password_reset",
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
		Confirm:   "tasker reset-password confirm --token <token>",
	}
}

// DispatchResult records the outcome of a notification dispatch.
type DispatchResult struct {
	Channel string `json:"channel"` // e.g., "log", "email", "webhook"
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Dispatcher sends notifications to its channels.
type Dispatcher struct {
	channels   []string
	webhookURL string
	mailCmd    string
	httpClient *http.Client
	out        io.Writer
	logger     *slog.Logger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithWebhookURL sets the target of the "webhook" channel.
func WithWebhookURL(url string) Option {
	return func(d *Dispatcher) { d.webhookURL = url }
}

// WithMailCommand overrides the "mail" binary used by the email channel.
func WithMailCommand(cmd string) Option {
	return func(d *Dispatcher) {
		if cmd != "" {
			d.mailCmd = cmd
		}
	}
}

// WithOutput sets where the "log" channel prints (default stderr).
func WithOutput(w io.Writer) Option {
	return func(d *Dispatcher) {
		if w != nil {
			d.out = w
		}
	}
}

// WithHTTPClient overrides the webhook HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.httpClient = c
		}
	}
}

// WithLogger sets the dispatcher's logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher. With no channels, "log" is used.
func NewDispatcher(channels []string, opts ...Option) *Dispatcher {
	if len(channels) == 0 {
		channels = []string{"log"}
	}
	d := &Dispatcher{
		channels:   channels,
		mailCmd:    "mail",
		httpClient: &http.Client{Timeout: 30 * time.Second},
		out:        os.Stderr,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Channels returns the configured channel names.
func (d *Dispatcher) Channels() []string {
	return append([]string(nil), d.channels...)
}

// Dispatch sends payload to every channel and reports each outcome.
func (d *Dispatcher) Dispatch(ctx context.Context, payload *ResetPayload) []DispatchResult {
	results := make([]DispatchResult, 0, len(d.channels))
	for _, ch := range d.channels {
		r := d.dispatchToChannel(ctx, payload, strings.TrimSpace(ch))
		if !r.Success {
			d.logger.Warn("notification failed", "channel", r.Channel, "err", r.Error)
		}
		results = append(results, r)
	}
	return results
}

// Delivered reports whether at least one channel succeeded.
func Delivered(results []DispatchResult) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}

func (d *Dispatcher) dispatchToChannel(ctx context.Context, payload *ResetPayload, channel string) DispatchResult {
	result := DispatchResult{Channel: channel}
	var err error

	switch channel {
	case "log":
		d.logNotification(payload)
	case "email":
		if payload.Email == "" {
			err = fmt.Errorf("no email address on payload")
		} else {
			err = d.sendEmail(ctx, payload)
		}
	case "webhook":
		if d.webhookURL == "" {
			err = fmt.Errorf("no webhook URL configured")
		} else {
			err = d.sendWebhook(ctx, payload)
		}
	default:
		err = fmt.Errorf("unknown channel type: %s", channel)
	}

	result.Success = err == nil
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

// logNotification prints the reset code for a local user.
func (d *Dispatcher) logNotification(payload *ResetPayload) {
	fmt.Fprintf(d.out, "\nPassword reset for %s\n", payload.Email)
	fmt.Fprintf(d.out, "   Token: %s\n", payload.Token)
	fmt.Fprintf(d.out, "   Expires: %s\n", payload.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(d.out, "   Run: %s\n\n", payload.Confirm)
	d.logger.Info("password reset issued", "channel", "log")
}

func (d *Dispatcher) sendEmail(ctx context.Context, payload *ResetPayload) error {
	content := RenderEmail(payload)
	cmd := exec.CommandContext(ctx, d.mailCmd, "-s", content.Subject, payload.Email) // #nosec G204 - mail command is configured
	cmd.Stdin = strings.NewReader(content.PlainText)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("mail command failed: %w", err)
	}
	return nil
}

func (d *Dispatcher) sendWebhook(ctx context.Context, payload *ResetPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tasker-Event", payload.Type)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// EmailContent is a rendered reset email.
type EmailContent struct {
	Subject   string
	PlainText string
}

// RenderEmail builds the reset email.
func RenderEmail(payload *ResetPayload) EmailContent {
	var body strings.Builder
	body.WriteString("A password reset was requested for your tasker account.\n\n")
	fmt.Fprintf(&body, "Reset token:\n\n  %s\n\n", payload.Token)
	fmt.Fprintf(&body, "The token expires at %s.\n", payload.ExpiresAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&body, "\nComplete the reset with:\n\n  %s\n", payload.Confirm)
	body.WriteString("\nIf you did not request this, ignore this message.\n")
	return EmailContent{
		Subject:   "[tasker] Password reset",
		PlainText: body.String(),
	}
}
