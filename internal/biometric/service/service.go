// Package service orchestrates the biometric matching workflows.
//
// The Engine owns workflow sequencing and decision-making; everything with a
// failure mode of its own (extraction, liveness, storage, policy, search) is
// a collaborator behind an interface declared here, consumer-side.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"biomatch/internal/audit"
	"biomatch/internal/biometric/extractor"
	"biomatch/internal/biometric/index"
	"biomatch/internal/biometric/liveness"
	"biomatch/internal/biometric/matcher"
	"biomatch/internal/biometric/metrics"
	"biomatch/internal/biometric/models"
	id "biomatch/pkg/domain"
	dErrors "biomatch/pkg/domain-errors"
	"biomatch/pkg/platform/keyedmutex"
	"biomatch/pkg/requestcontext"
)

type TemplateStore interface {
	Insert(ctx context.Context, t *models.BiometricTemplate) error
	FindByID(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID) (*models.BiometricTemplate, error)
	ListBySubject(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, modality models.Modality, matchableOnly bool) ([]*models.BiometricTemplate, error)
	SetActive(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID, active bool, now time.Time) error
	SoftDelete(ctx context.Context, tenantID id.TenantID, templateID id.TemplateID, now time.Time) error
}

type AttemptStore interface {
	Append(ctx context.Context, a *models.MatchAttempt) error
	ListByTenant(ctx context.Context, tenantID id.TenantID, limit int) ([]*models.MatchAttempt, error)
	ListBySubject(ctx context.Context, tenantID id.TenantID, subjectID id.SubjectID, limit int) ([]*models.MatchAttempt, error)
}

type PolicyStore interface {
	PolicyFor(ctx context.Context, tenantID id.TenantID) (models.TenantPolicy, error)
}

type Extractor interface {
	Extract(ctx context.Context, sample models.RawSample, modality models.Modality) (extractor.Features, error)
}

type LivenessGate interface {
	Check(ctx context.Context, sample models.RawSample, modality models.Modality) (liveness.Verdict, error)
}

type Searcher interface {
	Search(ctx context.Context, tenantID id.TenantID, modality models.Modality, probe []byte, threshold float64, limit int) (index.Result, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Engine runs enrollment, verification and identification against a tenant's
// template set.
type Engine struct {
	templates      TemplateStore
	attempts       AttemptStore
	policies       PolicyStore
	extractor      Extractor
	searcher       Searcher
	scorer         matcher.Scorer
	liveness       LivenessGate
	logger         *slog.Logger
	metrics        *metrics.Metrics
	auditPublisher AuditPublisher
	tracer         trace.Tracer

	// enrollLocks serializes duplicate-check + insert per
	// (tenant, subject, modality).
	enrollLocks *keyedmutex.KeyedMutex
}

type Option func(e *Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(e *Engine) {
		e.auditPublisher = publisher
	}
}

func WithLiveness(gate LivenessGate) Option {
	return func(e *Engine) {
		e.liveness = gate
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// New constructs an Engine. Liveness is optional; workflows that request it
// against an engine without a gate fail rather than silently skip the check.
func New(templates TemplateStore, attempts AttemptStore, policies PolicyStore, ext Extractor, searcher Searcher, scorer matcher.Scorer, opts ...Option) *Engine {
	e := &Engine{
		templates:   templates,
		attempts:    attempts,
		policies:    policies,
		extractor:   ext,
		searcher:    searcher,
		scorer:      scorer,
		tracer:      noop.NewTracerProvider().Tracer("biomatch"),
		enrollLocks: keyedmutex.New(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// checkLiveness runs the gate and converts a non-live verdict into a typed
// failure. The gate is the outermost step: nothing else runs when it rejects.
func (e *Engine) checkLiveness(ctx context.Context, sample models.RawSample, modality models.Modality) error {
	if e.liveness == nil {
		return dErrors.New(dErrors.CodeInternal, "liveness required but no gate configured")
	}
	verdict, err := e.liveness.Check(ctx, sample, modality)
	if err != nil {
		return err
	}
	if !verdict.IsLive {
		return dErrors.Newf(models.CodeLivenessFailed, "sample failed liveness with confidence %.2f", verdict.Confidence)
	}
	return nil
}

// appendAttempt writes the audit record and fails closed: when the append
// itself fails, the whole operation fails with audit_write_failure even if a
// biometric decision was already computed.
func (e *Engine) appendAttempt(ctx context.Context, attempt *models.MatchAttempt) error {
	if err := e.attempts.Append(ctx, attempt); err != nil {
		e.logError(ctx, "match attempt append failed",
			slog.String("attempt_id", attempt.ID.String()),
			slog.String("tenant_id", attempt.TenantID.String()),
			slog.String("error", err.Error()),
		)
		return dErrors.Wrap(err, models.CodeAuditWriteFailure, "persist match attempt")
	}
	return nil
}

// rejectAttempt records a failed workflow in the audit trail and returns the
// original failure, unless the audit write itself fails.
func (e *Engine) rejectAttempt(ctx context.Context, attempt *models.MatchAttempt, cause error) error {
	attempt.Decision = models.DecisionRejected
	attempt.Reason = models.ReasonFor(cause)
	if err := e.appendAttempt(ctx, attempt); err != nil {
		return err
	}
	return cause
}

func (e *Engine) emitLifecycle(ctx context.Context, event audit.Event) {
	event.DeviceID = requestcontext.DeviceID(ctx)
	if e.auditPublisher == nil {
		return
	}
	if err := e.auditPublisher.Emit(ctx, event); err != nil {
		e.logError(ctx, "lifecycle event emit failed",
			slog.String("action", event.Action),
			slog.String("tenant_id", event.TenantID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (e *Engine) logError(ctx context.Context, msg string, args ...any) {
	if e.logger == nil {
		return
	}
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		args = append(args, slog.String("request_id", requestID))
	}
	e.logger.ErrorContext(ctx, msg, args...)
}

// deviceFrom assembles sample provenance from request-scoped values set by
// middleware.
func deviceFrom(ctx context.Context) models.DeviceMeta {
	return models.DeviceMeta{
		DeviceID:   requestcontext.DeviceID(ctx),
		DeviceType: requestcontext.DeviceType(ctx),
	}
}
