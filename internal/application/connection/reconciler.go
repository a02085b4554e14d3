package connection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/erp/connhub/internal/domain/connection"
)

// DefaultUpsertAttempts is how many times a connection upsert is tried before giving up
const DefaultUpsertAttempts = 3

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithBackOff replaces the retry policy used for connection upserts
func WithBackOff(newBackOff func() backoff.BackOff) ReconcilerOption {
	return func(r *Reconciler) {
		r.newBackOff = newBackOff
	}
}

// Reconciler maps provider accounts and shops onto local records exactly once
type Reconciler struct {
	connRepo   connection.ConnectionRepository
	itemRepo   connection.ConnectionItemRepository
	logger     *zap.Logger
	newBackOff func() backoff.BackOff
}

// NewReconciler creates a Reconciler
func NewReconciler(
	connRepo connection.ConnectionRepository,
	itemRepo connection.ConnectionItemRepository,
	logger *zap.Logger,
	opts ...ReconcilerOption,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reconciler{
		connRepo:   connRepo,
		itemRepo:   itemRepo,
		logger:     logger.Named("reconciler"),
		newBackOff: defaultUpsertBackOff,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func defaultUpsertBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = time.Second
	b.MaxElapsedTime = 5 * time.Second
	return backoff.WithMaxRetries(b, DefaultUpsertAttempts-1)
}

// Upsert stores conn under its (user, platform, external account) triple and reloads it
// with the stored ID. existed reports whether the triple was already present.
// Storage failures are retried; once retries are exhausted a RECONCILE_FAILED error
// carrying the triple is returned.
func (r *Reconciler) Upsert(ctx context.Context, conn *connection.Connection) (existed bool, err error) {
	if !conn.Status.IsValid() {
		return false, connection.ErrInvalidStatus
	}

	existing, err := r.connRepo.FindByTriple(ctx, conn.UserID, conn.Platform, conn.ExternalAccountID)
	switch {
	case err == nil:
		existed = true
		// keep the stored id and creation time of the matched row
		conn.ID = existing.ID
		conn.CreatedAt = existing.CreatedAt
	case errors.Is(err, connection.ErrConnectionNotFound):
	default:
		r.logger.Warn("Triple lookup failed, continuing with upsert", zap.Error(err))
	}

	attempt := 0
	op := func() error {
		attempt++
		if err := r.connRepo.Upsert(ctx, conn); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			r.logger.Warn("Connection upsert failed",
				zap.Int("attempt", attempt),
				zap.String("user_id", conn.UserID),
				zap.String("platform", string(conn.Platform)),
				zap.String("external_account_id", conn.ExternalAccountID),
				zap.Error(err),
			)
			return err
		}
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(r.newBackOff(), ctx)); err != nil {
		r.logger.Error("Connection upsert exhausted retries, provider tokens were not stored",
			zap.String("user_id", conn.UserID),
			zap.String("platform", string(conn.Platform)),
			zap.String("external_account_id", conn.ExternalAccountID),
			zap.Int("attempts", attempt),
			zap.Error(err),
		)
		return existed, connection.WrapError(connection.KindReconcileFailed,
			fmt.Sprintf("failed to persist connection (user=%s, platform=%s, account=%s)",
				conn.UserID, conn.Platform, conn.ExternalAccountID),
			err)
	}

	return existed, nil
}

// SyncItems inserts the provider shops that are not yet items of conn.
// Items missing from shops are left alone: only an explicit disable changes their status.
func (r *Reconciler) SyncItems(ctx context.Context, conn *connection.Connection, shops []connection.ProviderShop) (connection.SyncResult, error) {
	var result connection.SyncResult

	existing, err := r.itemRepo.FindByConnection(ctx, conn.ID)
	if err != nil {
		return result, fmt.Errorf("failed to load connection items: %w", err)
	}

	seen := make(map[string]bool, len(existing)+len(shops))
	for _, item := range existing {
		seen[item.ExternalResourceID] = true
	}

	for _, shop := range shops {
		if shop.ExternalResourceID == "" || seen[shop.ExternalResourceID] {
			result.Skipped++
			continue
		}
		seen[shop.ExternalResourceID] = true

		inserted, err := r.itemRepo.CreateIfAbsent(ctx, connection.NewConnectionItem(conn, shop))
		if err != nil {
			return result, fmt.Errorf("failed to create connection item %s: %w", shop.ExternalResourceID, err)
		}
		if inserted {
			result.Added++
		} else {
			// a concurrent sync got there first
			result.Skipped++
		}
	}

	r.logger.Debug("Connection items synced",
		zap.String("connection_id", conn.ID.String()),
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
