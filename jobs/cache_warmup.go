package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-desk/atlas-desk/internal/authz"
	jobmetrics "github.com/atlas-desk/atlas-desk/internal/jobs"
)

const defaultWarmupWindowDays = 30

// CacheWarmupJob pre-populates effective-permission caches for recently
// active users so admin-screen tabs load from Redis instead of Postgres.
type CacheWarmupJob struct {
	Resolver *authz.Resolver
	Pool     *pgxpool.Pool
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// NewCacheWarmupJob wires dependencies for the warmup handler.
func NewCacheWarmupJob(resolver *authz.Resolver, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *CacheWarmupJob {
	return &CacheWarmupJob{
		Resolver: resolver,
		Pool:     pool,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes cache warmup tasks.
func (j *CacheWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("cache warmup: handler not configured")
	}
	var payload CacheWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.ActiveWithinDays <= 0 {
		payload.ActiveWithinDays = defaultWarmupWindowDays
	}

	tracker := j.metrics().Track(TaskCacheWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("active_within_days", payload.ActiveWithinDays))
	logger.Info("starting cache warmup")

	start := j.now()
	userIDs, err := j.fetchActiveUsers(ctx, payload.ActiveWithinDays)
	if err != nil {
		resultErr = err
		logger.Error("load warmup users", slog.Any("error", err))
		return resultErr
	}
	if len(userIDs) == 0 {
		logger.Info("no users discovered for warmup")
		return resultErr
	}

	warmed := 0
	for _, userID := range userIDs {
		if err := j.warmUser(ctx, userID); err != nil {
			resultErr = err
			logger.Error("warm user", slog.Int64("user_id", userID), slog.Any("error", err))
			return resultErr
		}
		warmed++
	}

	logger.Info("completed cache warmup", slog.Int("users", warmed), slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *CacheWarmupJob) warmUser(ctx context.Context, userID int64) error {
	if j.Resolver == nil {
		return nil
	}
	userCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := j.Resolver.EffectivePermissions(userCtx, userID)
	return err
}

func (j *CacheWarmupJob) fetchActiveUsers(ctx context.Context, withinDays int) ([]int64, error) {
	if j.Pool == nil {
		return nil, errors.New("cache warmup: pool not configured")
	}
	cutoff := j.now().AddDate(0, 0, -withinDays)
	rows, err := j.Pool.Query(ctx,
		`SELECT DISTINCT user_id FROM user_roles WHERE is_active = TRUE AND assigned_at >= $1 ORDER BY user_id`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	userIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (j *CacheWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *CacheWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}

func (j *CacheWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
