package connection

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/erp/connhub/internal/domain/connection"
	"github.com/erp/connhub/internal/infrastructure/telemetry"
)

// Refresh triggers, used for metrics and audit metadata
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// CallbackResult is the outcome of a completed authorization
type CallbackResult struct {
	AttemptID    uuid.UUID
	ConnectionID uuid.UUID
	UserID       string
	Platform     connection.PlatformCode
	DisplayName  string
	// Created is false when an existing connection was re-authorized
	Created bool
	Items   connection.SyncResult
}

// LifecycleOption configures a LifecycleManager
type LifecycleOption func(*LifecycleManager)

// WithConnectionMetrics records callback and refresh outcomes
func WithConnectionMetrics(m *telemetry.ConnectionMetrics) LifecycleOption {
	return func(l *LifecycleManager) {
		l.metrics = m
	}
}

// LifecycleManager drives an OAuth attempt from callback to stored connection, and
// refreshes the tokens of stored connections.
type LifecycleManager struct {
	registry   connection.AdapterRegistry
	resolver   *Resolver
	reconciler *Reconciler
	connRepo   connection.ConnectionRepository
	audit      *AuditRecorder
	metrics    *telemetry.ConnectionMetrics
	logger     *zap.Logger
	refreshes  singleflight.Group
}

// NewLifecycleManager creates a LifecycleManager
func NewLifecycleManager(
	registry connection.AdapterRegistry,
	resolver *Resolver,
	reconciler *Reconciler,
	connRepo connection.ConnectionRepository,
	audit *AuditRecorder,
	logger *zap.Logger,
	opts ...LifecycleOption,
) *LifecycleManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	l := &LifecycleManager{
		registry:   registry,
		resolver:   resolver,
		reconciler: reconciler,
		connRepo:   connRepo,
		audit:      audit,
		logger:     logger.Named("lifecycle"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// ---------------------------------------------------------------------------
// Initial authorization
// ---------------------------------------------------------------------------

// HandleCallback completes an authorization: recover the user, exchange the code, look up
// the account, store the connection, sync its shops and audit the outcome.
// The returned error is always a *connection.Error.
func (l *LifecycleManager) HandleCallback(
	ctx context.Context,
	platform connection.PlatformCode,
	params connection.CallbackParams,
	reqAuth RequestAuth,
) (*CallbackResult, error) {
	attempt := connection.NewAttempt(platform)
	log := l.logger.With(
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("platform", string(platform)),
	)
	log.Info("Attempt started", zap.String("state", string(attempt.State())))

	adapter, err := l.registry.Get(platform)
	if err != nil {
		return nil, l.failCallback(ctx, log, attempt, connection.OpConnectionCreate,
			connection.WrapError(connection.KindPlatformError, "platform not supported", err))
	}

	// AWAIT_CALLBACK: who started this attempt
	userID, strategy, err := l.resolver.Resolve(ctx, ResolveInput{Platform: platform, Params: params, Auth: reqAuth})
	l.metrics.RecordIdentity(ctx, string(platform), strategy)
	if err != nil {
		return nil, l.failCallback(ctx, log, attempt, connection.OpConnectionCreate, err)
	}
	attempt.UserID = userID
	log = log.With(zap.String("user_id", userID), zap.String("identity_strategy", strategy))

	// EXCHANGING
	l.advance(log, attempt, connection.StateExchanging)
	token, err := l.exchange(ctx, adapter, params)
	if err != nil {
		return nil, l.failCallback(ctx, log, attempt, connection.OpConnectionCreate, err)
	}

	// IDENTITY_LOOKUP: best effort
	l.advance(log, attempt, connection.StateIdentityLookup)
	accountID, displayName := l.lookupIdentity(ctx, log, adapter, platform, token)
	if accountID == "" {
		return nil, l.failCallback(ctx, log, attempt, connection.OpConnectionCreate,
			connection.NewError(connection.KindPlatformUnknown, "provider did not identify the authorized account"))
	}

	// RECONCILING
	l.advance(log, attempt, connection.StateReconciling)
	conn, err := connection.NewConnection(userID, platform, accountID, displayName, connection.NewAuthPayload(token))
	if err != nil {
		return nil, l.failCallback(ctx, log, attempt, connection.OpConnectionCreate,
			connection.WrapError(connection.KindPlatformUnknown, "invalid connection data", err))
	}

	existed, err := l.reconcile(ctx, conn)
	op := connection.OpConnectionCreate
	if existed {
		op = connection.OpConnectionReauthorize
	}
	if err != nil {
		return nil, l.failCallback(ctx, log, attempt, op, err)
	}

	items := l.syncShops(ctx, log, adapter, conn)

	// AUDITING
	l.advance(log, attempt, connection.StateAuditing)
	l.audit.Record(ctx, connection.NewSuccessAudit(userID, op).
		WithConnection(conn.ID).
		WithMeta("platform", string(platform)).
		WithMeta("external_account_id", conn.ExternalAccountID).
		WithMeta("identity_strategy", strategy).
		WithMeta("attempt_id", attempt.ID.String()).
		WithMeta("items_added", fmt.Sprint(items.Added)))

	l.advance(log, attempt, connection.StateDone)
	l.metrics.RecordCallback(ctx, string(platform), "")
	log.Info("Attempt completed",
		zap.String("connection_id", conn.ID.String()),
		zap.Bool("created", !existed),
		zap.Int("items_added", items.Added),
	)

	return &CallbackResult{
		AttemptID:    attempt.ID,
		ConnectionID: conn.ID,
		UserID:       userID,
		Platform:     platform,
		DisplayName:  conn.DisplayName,
		Created:      !existed,
		Items:        items,
	}, nil
}

func (l *LifecycleManager) exchange(ctx context.Context, adapter connection.PlatformAdapter, params connection.CallbackParams) (*connection.TokenPayload, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "lifecycle", "exchange",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, string(adapter.PlatformCode())))
	defer span.End()

	token, err := adapter.ExchangeToken(ctx, params)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return token, nil
}

// lookupIdentity resolves the external account and display name. A failed lookup falls back
// to what the token response carried and then to a synthesized name.
func (l *LifecycleManager) lookupIdentity(
	ctx context.Context,
	log *zap.Logger,
	adapter connection.PlatformAdapter,
	platform connection.PlatformCode,
	token *connection.TokenPayload,
) (string, string) {
	ctx, span := telemetry.StartServiceSpan(ctx, "lifecycle", "identity",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, string(platform)))
	defer span.End()

	accountID, displayName := token.ExternalAccountID, token.DisplayName

	identity, err := adapter.GetIdentity(ctx, token.AccessToken, token.Extra)
	if err != nil {
		telemetry.AddEvent(span, "identity_fallback", telemetry.SpanAttrErrorKind, string(connection.KindOf(err)))
		log.Warn("Identity lookup failed, using fallback display name", zap.Error(err))
	} else if identity != nil {
		if identity.ExternalAccountID != "" {
			accountID = identity.ExternalAccountID
		}
		if identity.DisplayName != "" {
			displayName = identity.DisplayName
		}
	}

	if displayName == "" {
		displayName = connection.FallbackDisplayName(platform, accountID)
	}
	return accountID, displayName
}

func (l *LifecycleManager) reconcile(ctx context.Context, conn *connection.Connection) (bool, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "lifecycle", "reconcile",
		telemetry.WithAttribute(telemetry.SpanAttrPlatform, string(conn.Platform)),
		telemetry.WithAttribute(telemetry.SpanAttrUserID, conn.UserID))
	defer span.End()

	existed, err := l.reconciler.Upsert(ctx, conn)
	if err != nil {
		telemetry.RecordError(span, err)
		return existed, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrConnectionID, conn.ID.String())
	return existed, nil
}

// syncShops is best effort: failures are logged and the attempt still succeeds
func (l *LifecycleManager) syncShops(ctx context.Context, log *zap.Logger, adapter connection.PlatformAdapter, conn *connection.Connection) connection.SyncResult {
	shops, err := adapter.ListShops(ctx, conn.AuthPayload.AccessToken, conn.AuthPayload.Extra)
	if err != nil {
		log.Warn("Shop listing failed, skipping item sync", zap.Error(err))
		return connection.SyncResult{}
	}

	result, err := l.reconciler.SyncItems(ctx, conn, shops)
	if err != nil {
		log.Warn("Item sync failed", zap.Error(err))
	}
	return result
}

func (l *LifecycleManager) advance(log *zap.Logger, attempt *connection.Attempt, next connection.AttemptState) {
	from := attempt.State()
	if err := attempt.Advance(next); err != nil {
		log.Error("Illegal attempt transition",
			zap.String("from", string(from)),
			zap.String("to", string(next)),
			zap.Error(err),
		)
		return
	}
	log.Debug("Attempt transition", zap.String("from", string(from)), zap.String("to", string(next)))
}

// failCallback moves the attempt to FAILED, audits the failure and returns the classified error
func (l *LifecycleManager) failCallback(
	ctx context.Context,
	log *zap.Logger,
	attempt *connection.Attempt,
	op connection.AuditOperation,
	err error,
) error {
	classified := connection.AsError(err)
	from := attempt.State()
	attempt.Fail(classified)

	log.Warn("Attempt failed",
		zap.String("state", string(from)),
		zap.String("error_kind", string(classified.Kind)),
		zap.String("provider_code", classified.Code),
		zap.String("provider_raw", classified.Raw),
		zap.Error(err),
	)

	l.audit.Record(ctx, connection.NewErrorAudit(attempt.UserID, op, classified).
		WithMeta("platform", string(attempt.Platform)).
		WithMeta("attempt_id", attempt.ID.String()).
		WithMeta("failed_state", string(from)))
	l.metrics.RecordCallback(ctx, string(attempt.Platform), string(classified.Kind))

	return classified
}

// ---------------------------------------------------------------------------
// Refresh
// ---------------------------------------------------------------------------

// Refresh renews the tokens of a connection on behalf of its owner.
// The stored payload is only changed when the provider refresh succeeded.
func (l *LifecycleManager) Refresh(ctx context.Context, connectionID uuid.UUID, callerUserID string) (*connection.TokenPayload, error) {
	return l.refresh(ctx, "", connectionID, callerUserID, TriggerManual)
}

// RefreshOn is Refresh for a caller that expects the connection to belong to platform.
// A connection of another platform is rejected as an ownership mismatch.
func (l *LifecycleManager) RefreshOn(
	ctx context.Context,
	platform connection.PlatformCode,
	connectionID uuid.UUID,
	callerUserID string,
) (*connection.TokenPayload, error) {
	return l.refresh(ctx, platform, connectionID, callerUserID, TriggerManual)
}

// RefreshScheduled renews the tokens of a connection as its owner from a background job
func (l *LifecycleManager) RefreshScheduled(ctx context.Context, conn connection.Connection) (*connection.TokenPayload, error) {
	return l.refresh(ctx, conn.Platform, conn.ID, conn.UserID, TriggerScheduled)
}

// refresh invokes the adapter of the expected platform, or of the stored platform when none is
// expected, and requires the connection to belong to both the caller and that adapter
func (l *LifecycleManager) refresh(
	ctx context.Context,
	expected connection.PlatformCode,
	connectionID uuid.UUID,
	callerUserID, trigger string,
) (*connection.TokenPayload, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "lifecycle", "refresh",
		telemetry.WithAttribute(telemetry.SpanAttrConnectionID, connectionID.String()))
	defer span.End()

	log := l.logger.With(
		zap.String("connection_id", connectionID.String()),
		zap.String("caller_user_id", callerUserID),
		zap.String("trigger", trigger),
	)

	conn, err := l.connRepo.FindByID(ctx, connectionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrPlatform, string(conn.Platform))

	if expected == "" {
		expected = conn.Platform
	}
	adapter, err := l.registry.Get(expected)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if !conn.IsOwnedBy(callerUserID, adapter.PlatformCode()) {
		mismatch := connection.ErrOwnershipMismatch
		log.Warn("Refresh rejected: caller does not own connection",
			zap.String("owner_user_id", conn.UserID),
			zap.String("expected_platform", string(adapter.PlatformCode())),
		)
		l.audit.Record(ctx, connection.NewErrorAudit(callerUserID, connection.OpConnectionRefresh, mismatch).
			WithConnection(conn.ID).
			WithMeta("platform", string(conn.Platform)).
			WithMeta("expected_platform", string(adapter.PlatformCode())).
			WithMeta("trigger", trigger))
		l.metrics.RecordRefresh(ctx, string(conn.Platform), trigger, string(mismatch.Kind))
		telemetry.RecordError(span, mismatch)
		return nil, mismatch
	}

	// concurrent refreshes of one connection share one provider call
	v, err, shared := l.refreshes.Do(conn.ID.String(), func() (interface{}, error) {
		return l.refreshOwned(ctx, log, adapter, conn, trigger)
	})
	if shared {
		log.Debug("Refresh shared with a concurrent caller")
	}
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return v.(*connection.TokenPayload), nil
}

func (l *LifecycleManager) refreshOwned(
	ctx context.Context,
	log *zap.Logger,
	adapter connection.PlatformAdapter,
	conn *connection.Connection,
	trigger string,
) (*connection.TokenPayload, error) {
	token, err := adapter.RefreshToken(ctx, conn.AuthPayload.RefreshToken, conn.AuthPayload.Extra)
	if err != nil {
		return nil, l.failRefresh(ctx, log, conn, trigger, err)
	}

	updated := *conn
	updated.AuthPayload = conn.AuthPayload.Merge(token)
	if _, err := l.reconciler.Upsert(ctx, &updated); err != nil {
		return nil, l.failRefresh(ctx, log, conn, trigger, err)
	}

	l.audit.Record(ctx, connection.NewSuccessAudit(conn.UserID, connection.OpConnectionRefresh).
		WithConnection(conn.ID).
		WithMeta("platform", string(conn.Platform)).
		WithMeta("trigger", trigger))
	l.metrics.RecordRefresh(ctx, string(conn.Platform), trigger, "")
	log.Info("Connection refreshed", zap.Time("expires_at", updated.AuthPayload.ExpiresAt))

	return token, nil
}

func (l *LifecycleManager) failRefresh(ctx context.Context, log *zap.Logger, conn *connection.Connection, trigger string, err error) error {
	classified := connection.AsError(err)
	log.Warn("Refresh failed",
		zap.String("error_kind", string(classified.Kind)),
		zap.String("provider_code", classified.Code),
		zap.String("provider_raw", classified.Raw),
		zap.Bool("requires_reauthorization", classified.Kind.RequiresReauthorization()),
		zap.Error(err),
	)
	l.audit.Record(ctx, connection.NewErrorAudit(conn.UserID, connection.OpConnectionRefresh, classified).
		WithConnection(conn.ID).
		WithMeta("platform", string(conn.Platform)).
		WithMeta("trigger", trigger))
	l.metrics.RecordRefresh(ctx, string(conn.Platform), trigger, string(classified.Kind))
	return classified
}
