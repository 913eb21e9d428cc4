package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/cloudsbay/tasker/internal/storage"
	"github.com/cloudsbay/tasker/internal/types"
)

const storageScopeName = "github.com/cloudsbay/tasker/storage"

// InstrumentedStorage wraps storage.Storage with OTel tracing and metrics.
// Every method gets a span and is counted in tasker.storage.* metrics.
// Use WrapStorage to create one; it returns the original store unchanged when
// telemetry is disabled.
type InstrumentedStorage struct {
	inner     storage.Storage
	tracer    trace.Tracer
	ops       metric.Int64Counter
	dur       metric.Float64Histogram
	errs      metric.Int64Counter
	taskGauge metric.Int64Gauge
}

var _ storage.Storage = (*InstrumentedStorage)(nil)

// WrapStorage returns s decorated with OTel instrumentation.
// When telemetry is disabled, s is returned as-is with zero overhead.
func WrapStorage(s storage.Storage) storage.Storage {
	if !Enabled() {
		return s
	}
	return newInstrumentedStorage(s)
}

func newInstrumentedStorage(s storage.Storage) *InstrumentedStorage {
	m := Meter(storageScopeName)
	ops, _ := m.Int64Counter("tasker.storage.operations",
		metric.WithDescription("Total storage operations executed"),
	)
	dur, _ := m.Float64Histogram("tasker.storage.operation.duration",
		metric.WithDescription("Storage operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("tasker.storage.errors",
		metric.WithDescription("Total storage operation errors"),
	)
	taskGauge, _ := m.Int64Gauge("tasker.task.count",
		metric.WithDescription("Tasks per status for the last listed owner"),
	)
	return &InstrumentedStorage{
		inner:     s,
		tracer:    Tracer(storageScopeName),
		ops:       ops,
		dur:       dur,
		errs:      errs,
		taskGauge: taskGauge,
	}
}

// Unwrap returns the decorated store.
func (s *InstrumentedStorage) Unwrap() storage.Storage {
	return s.inner
}

// op starts a span and records a metric for the named storage operation.
func (s *InstrumentedStorage) op(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span, time.Time) {
	all := append([]attribute.KeyValue{attribute.String("db.operation", name)}, attrs...)
	ctx, span := s.tracer.Start(ctx, "storage."+name,
		trace.WithAttributes(all...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	s.ops.Add(ctx, 1, metric.WithAttributes(all...))
	return ctx, span, time.Now()
}

// done ends the span, records duration and optional error.
func (s *InstrumentedStorage) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs ...attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	s.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

// ── Tasks ───────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) SaveTask(ctx context.Context, task *types.Task) error {
	var attrs []attribute.KeyValue
	if task != nil {
		attrs = []attribute.KeyValue{
			attribute.String("tasker.task.id", task.ID),
			attribute.String("tasker.task.status", string(task.Status)),
		}
	}
	ctx, span, t := s.op(ctx, "SaveTask", attrs...)
	err := s.inner.SaveTask(ctx, task)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) ListTasks(ctx context.Context, ownerID string) ([]*types.Task, error) {
	ctx, span, t := s.op(ctx, "ListTasks")
	tasks, err := s.inner.ListTasks(ctx, ownerID)
	if err == nil {
		span.SetAttributes(attribute.Int("tasker.result.count", len(tasks)))
		pending := int64(len(types.Pending(tasks)))
		s.taskGauge.Record(ctx, pending, metric.WithAttributes(attribute.String("status", string(types.StatusPending))))
		s.taskGauge.Record(ctx, int64(len(tasks))-pending, metric.WithAttributes(attribute.String("status", string(types.StatusComplete))))
	}
	s.done(ctx, span, t, err)
	return tasks, err
}

// ── Profiles ────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) GetProfile(ctx context.Context, uid string) (*types.User, error) {
	ctx, span, t := s.op(ctx, "GetProfile")
	u, err := s.inner.GetProfile(ctx, uid)
	s.done(ctx, span, t, err)
	return u, err
}

func (s *InstrumentedStorage) SaveProfile(ctx context.Context, uid string, user *types.User) error {
	ctx, span, t := s.op(ctx, "SaveProfile")
	err := s.inner.SaveProfile(ctx, uid, user)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) UpdateProfileField(ctx context.Context, uid string, field types.ProfileField, value string) error {
	attrs := []attribute.KeyValue{attribute.String("tasker.profile.field", string(field))}
	ctx, span, t := s.op(ctx, "UpdateProfileField", attrs...)
	err := s.inner.UpdateProfileField(ctx, uid, field, value)
	s.done(ctx, span, t, err, attrs...)
	return err
}

func (s *InstrumentedStorage) DeleteProfile(ctx context.Context, uid string) error {
	ctx, span, t := s.op(ctx, "DeleteProfile")
	err := s.inner.DeleteProfile(ctx, uid)
	s.done(ctx, span, t, err)
	return err
}

// ── Accounts ────────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) CreateAccount(ctx context.Context, acct *types.Account) error {
	ctx, span, t := s.op(ctx, "CreateAccount")
	err := s.inner.CreateAccount(ctx, acct)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) GetAccount(ctx context.Context, uid string) (*types.Account, error) {
	ctx, span, t := s.op(ctx, "GetAccount")
	a, err := s.inner.GetAccount(ctx, uid)
	s.done(ctx, span, t, err)
	return a, err
}

func (s *InstrumentedStorage) GetAccountByEmail(ctx context.Context, email string) (*types.Account, error) {
	ctx, span, t := s.op(ctx, "GetAccountByEmail")
	a, err := s.inner.GetAccountByEmail(ctx, email)
	s.done(ctx, span, t, err)
	return a, err
}

func (s *InstrumentedStorage) UpdateAccountEmail(ctx context.Context, uid, email string) error {
	ctx, span, t := s.op(ctx, "UpdateAccountEmail")
	err := s.inner.UpdateAccountEmail(ctx, uid, email)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) UpdatePasswordHash(ctx context.Context, uid, hash string) error {
	ctx, span, t := s.op(ctx, "UpdatePasswordHash")
	err := s.inner.UpdatePasswordHash(ctx, uid, hash)
	s.done(ctx, span, t, err)
	return err
}

func (s *InstrumentedStorage) DeleteAccount(ctx context.Context, uid string) error {
	ctx, span, t := s.op(ctx, "DeleteAccount")
	err := s.inner.DeleteAccount(ctx, uid)
	s.done(ctx, span, t, err)
	return err
}

// ── Lifecycle ───────────────────────────────────────────────────────────────

func (s *InstrumentedStorage) Close() error {
	return s.inner.Close()
}
