package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OutcomeOK labels a successful orchestration step
const OutcomeOK = "ok"

// ConnectionMetrics counts OAuth callback, refresh and identity recovery outcomes.
// A nil *ConnectionMetrics is valid and records nothing.
type ConnectionMetrics struct {
	callbacks  *Counter
	refreshes  *Counter
	identities *Counter
	auditDrops *Counter
}

// NewConnectionMetrics creates the orchestration counters on meter
func NewConnectionMetrics(meter metric.Meter) (*ConnectionMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   ConnectionMetrics
		err error
	)

	m.callbacks, err = NewCounter(meter,
		"connhub_oauth_callbacks_total",
		"OAuth callbacks handled, by platform and error kind",
		"{callbacks}",
	)
	if err != nil {
		return nil, err
	}

	m.refreshes, err = NewCounter(meter,
		"connhub_token_refreshes_total",
		"Token refreshes attempted, by platform, trigger and error kind",
		"{refreshes}",
	)
	if err != nil {
		return nil, err
	}

	m.identities, err = NewCounter(meter,
		"connhub_identity_resolutions_total",
		"Identity recoveries, by platform and the strategy that answered",
		"{resolutions}",
	)
	if err != nil {
		return nil, err
	}

	m.auditDrops, err = NewCounter(meter,
		"connhub_audit_write_failures_total",
		"Audit entries that could not be written",
		"{entries}",
	)
	if err != nil {
		return nil, err
	}

	return &m, nil
}

// RecordCallback counts one callback. An empty kind means success.
func (m *ConnectionMetrics) RecordCallback(ctx context.Context, platform, kind string) {
	if m == nil {
		return
	}
	m.callbacks.Inc(ctx, outcomeAttrs(platform, kind)...)
}

// RecordRefresh counts one refresh. trigger is "manual" or "scheduled".
func (m *ConnectionMetrics) RecordRefresh(ctx context.Context, platform, trigger, kind string) {
	if m == nil {
		return
	}
	m.refreshes.Inc(ctx, append(outcomeAttrs(platform, kind), AttrTrigger.String(trigger))...)
}

// RecordIdentity counts which strategy recovered the user; strategy is empty when none did
func (m *ConnectionMetrics) RecordIdentity(ctx context.Context, platform, strategy string) {
	if m == nil {
		return
	}
	if strategy == "" {
		strategy = "unresolved"
	}
	m.identities.Inc(ctx, AttrPlatform.String(platform), AttrStrategy.String(strategy))
}

// RecordAuditFailure counts one lost audit entry
func (m *ConnectionMetrics) RecordAuditFailure(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	m.auditDrops.Inc(ctx, AttrOperation.String(operation))
}

func outcomeAttrs(platform, kind string) []attribute.KeyValue {
	outcome := OutcomeOK
	if kind != "" {
		outcome = "error"
	}
	return []attribute.KeyValue{
		AttrPlatform.String(platform),
		AttrOutcome.String(outcome),
		AttrErrorKind.String(kind),
	}
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewConnectionMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
