package prioritize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/cloudsbay/tasker/internal/audit"
	"github.com/cloudsbay/tasker/internal/telemetry"
)

const aiScope = "github.com/cloudsbay/tasker/ai"

// DefaultMaxTokens bounds the reply; a task name is short.
const DefaultMaxTokens = 256

// ErrAPIKeyRequired is returned when no Anthropic API key is available.
var ErrAPIKeyRequired = errors.New("API key required")

// AnthropicGenerator implements Generator on the Anthropic Messages API.
// Each Generate is a single request; the engine never retries.
type AnthropicGenerator struct {
	client     anthropic.Client
	maxTokens  int64
	auditDir   string
	auditActor string
}

// AnthropicOption configures an AnthropicGenerator.
type AnthropicOption func(*anthropicSettings)

type anthropicSettings struct {
	maxTokens     int64
	auditDir      string
	auditActor    string
	clientOptions []option.RequestOption
}

// WithMaxTokens sets max_tokens on every request.
func WithMaxTokens(n int) AnthropicOption {
	return func(s *anthropicSettings) {
		if n > 0 {
			s.maxTokens = int64(n)
		}
	}
}

// WithAudit appends every call to dir/audit.jsonl.
func WithAudit(dir, actor string) AnthropicOption {
	return func(s *anthropicSettings) {
		s.auditDir = dir
		s.auditActor = actor
	}
}

// WithClientOptions passes request options to the SDK client (base URL, HTTP client).
func WithClientOptions(opts ...option.RequestOption) AnthropicOption {
	return func(s *anthropicSettings) {
		s.clientOptions = append(s.clientOptions, opts...)
	}
}

// NewAnthropicGenerator creates a generator. ANTHROPIC_API_KEY takes
// precedence over apiKey.
func NewAnthropicGenerator(apiKey string, opts ...AnthropicOption) (*AnthropicGenerator, error) {
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY or ai.api-key", ErrAPIKeyRequired)
	}

	s := anthropicSettings{maxTokens: DefaultMaxTokens}
	for _, opt := range opts {
		opt(&s)
	}

	// The SDK retries by default; one request per call is the contract here.
	clientOpts := append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, s.clientOptions...)

	aiMetricsOnce.Do(initAIMetrics)

	return &AnthropicGenerator{
		client:     anthropic.NewClient(clientOpts...),
		maxTokens:  s.maxTokens,
		auditDir:   s.auditDir,
		auditActor: s.auditActor,
	}, nil
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter(aiScope)
	aiMetrics.inputTokens, _ = m.Int64Counter("tasker.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("tasker.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("tasker.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// Generate sends prompt as a single user message and returns the first text block.
func (g *AnthropicGenerator) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.call(ctx, model, prompt)
	if g.auditDir != "" {
		e := &audit.Entry{
			Kind:     audit.KindLLMCall,
			Actor:    g.auditActor,
			Model:    model,
			Prompt:   prompt,
			Response: resp,
		}
		if err != nil {
			e.Error = err.Error()
		}
		_, _ = audit.Append(g.auditDir, e) // Best effort: audit logging must never fail prioritization
	}
	return resp, err
}

func (g *AnthropicGenerator) call(ctx context.Context, model, prompt string) (string, error) {
	ctx, span := telemetry.Tracer(aiScope).Start(ctx, "anthropic.messages.new")
	defer span.End()
	modelAttr := attribute.String("tasker.ai.model", model)
	span.SetAttributes(modelAttr, attribute.String("tasker.ai.operation", "prioritize"))

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	t0 := time.Now()
	message, err := g.client.Messages.New(ctx, params)
	ms := float64(time.Since(t0).Milliseconds())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("anthropic request: %w", err)
	}

	if aiMetrics.inputTokens != nil {
		aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
	}
	span.SetAttributes(
		attribute.Int64("tasker.ai.input_tokens", message.Usage.InputTokens),
		attribute.Int64("tasker.ai.output_tokens", message.Usage.OutputTokens),
	)

	if len(message.Content) == 0 {
		return "", fmt.Errorf("unexpected response format: no content blocks")
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
	}
	return content.Text, nil
}
