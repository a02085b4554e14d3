package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/erp/connhub/internal/domain/connection"
)

// RefreshJobName is the registered name of the proactive refresh job
const RefreshJobName = "token_refresh"

// TokenRefresher renews one connection's tokens as its owner
type TokenRefresher interface {
	RefreshScheduled(ctx context.Context, conn connection.Connection) (*connection.TokenPayload, error)
}

// RefreshJobConfig holds configuration for the proactive refresh job
type RefreshJobConfig struct {
	// Window selects connections whose access token expires within it
	Window time.Duration
	// BatchSize caps the connections refreshed per run
	BatchSize int
	// MaxConcurrency caps concurrent provider refresh calls
	MaxConcurrency int
	// ParkDuration is how long a connection whose refresh failed with a non-retryable error is
	// skipped, unless it changes first. Zero means DefaultParkDuration.
	ParkDuration time.Duration
}

// DefaultParkDuration is the default time a non-retryable failure is skipped for
const DefaultParkDuration = 24 * time.Hour

// DefaultRefreshJobConfig returns default refresh job configuration
func DefaultRefreshJobConfig() RefreshJobConfig {
	return RefreshJobConfig{
		Window:         2 * time.Hour,
		BatchSize:      200,
		MaxConcurrency: 4,
		ParkDuration:   DefaultParkDuration,
	}
}

// Validate validates the configuration
func (c RefreshJobConfig) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: refresh window must be positive", ErrInvalidConfig)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: refresh batch must be positive", ErrInvalidConfig)
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("%w: max concurrency must be positive", ErrInvalidConfig)
	}
	if c.ParkDuration < 0 {
		return fmt.Errorf("%w: park duration must not be negative", ErrInvalidConfig)
	}
	return nil
}

// RefreshStats summarizes one refresh run
type RefreshStats struct {
	Selected  int
	Refreshed int
	Failed    int
	// Parked counts connections skipped after an earlier non-retryable failure
	Parked int
}

// RefreshJob refreshes connections before their access tokens expire
type RefreshJob struct {
	config    RefreshJobConfig
	conns     connection.ConnectionRepository
	refresher TokenRefresher
	logger    *zap.Logger
	now       func() time.Time
	// parked maps a connection id to its UpdatedAt when a refresh failed without hope of a retry
	parked *gocache.Cache
}

// NewRefreshJob creates a new refresh job
func NewRefreshJob(
	config RefreshJobConfig,
	conns connection.ConnectionRepository,
	refresher TokenRefresher,
	logger *zap.Logger,
) (*RefreshJob, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.ParkDuration == 0 {
		config.ParkDuration = DefaultParkDuration
	}
	return &RefreshJob{
		config:    config,
		conns:     conns,
		refresher: refresher,
		logger:    logger,
		now:       time.Now,
		parked:    gocache.New(config.ParkDuration, config.ParkDuration),
	}, nil
}

// Run implements JobFunc
func (j *RefreshJob) Run(ctx context.Context) error {
	_, err := j.RunOnce(ctx)
	return err
}

// RunOnce refreshes one batch of expiring connections. Individual refresh failures are
// already audited by the lifecycle manager and do not fail the run. A connection whose refresh
// failed with a non-retryable kind is parked until it is reauthorized or the park expires.
func (j *RefreshJob) RunOnce(ctx context.Context) (RefreshStats, error) {
	before := j.now().Add(j.config.Window)
	conns, err := j.conns.FindExpiring(ctx, before, j.config.BatchSize)
	if err != nil {
		return RefreshStats{}, fmt.Errorf("failed to list expiring connections: %w", err)
	}

	var refreshed, failed atomic.Int64
	parked := 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.MaxConcurrency)

	for i := range conns {
		conn := conns[i]
		if j.isParked(conn) {
			parked++
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			if _, err := j.refresher.RefreshScheduled(gctx, conn); err != nil {
				failed.Add(1)
				kind := connection.KindOf(err)
				if !kind.IsRetryable() {
					j.parked.SetDefault(conn.ID.String(), conn.UpdatedAt)
				}
				j.logger.Warn("Scheduled token refresh failed",
					zap.String("connection_id", conn.ID.String()),
					zap.String("platform", string(conn.Platform)),
					zap.String("error_kind", string(kind)),
					zap.Bool("parked", !kind.IsRetryable()),
					zap.Error(err),
				)
				return nil
			}
			j.parked.Delete(conn.ID.String())
			refreshed.Add(1)
			return nil
		})
	}

	err = g.Wait()
	stats := RefreshStats{
		Selected:  len(conns),
		Refreshed: int(refreshed.Load()),
		Failed:    int(failed.Load()),
		Parked:    parked,
	}
	j.logger.Info("Token refresh run finished",
		zap.Int("selected", stats.Selected),
		zap.Int("refreshed", stats.Refreshed),
		zap.Int("failed", stats.Failed),
		zap.Int("parked", stats.Parked),
	)
	return stats, err
}

// isParked reports whether conn failed earlier without a retryable kind and has not changed
// since. Reauthorization rewrites the row, which releases it.
func (j *RefreshJob) isParked(conn connection.Connection) bool {
	v, ok := j.parked.Get(conn.ID.String())
	if !ok {
		return false
	}
	if parkedAt, _ := v.(time.Time); parkedAt.Equal(conn.UpdatedAt) {
		return true
	}
	j.parked.Delete(conn.ID.String())
	return false
}
