package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-desk/atlas-desk/internal/audit"
	jobmetrics "github.com/atlas-desk/atlas-desk/internal/jobs"
)

// AuditRetentionJob prunes audit log entries older than the retention window.
type AuditRetentionJob struct {
	Audit         *audit.Service
	RetentionDays int
	Logger        *slog.Logger
	Metrics       *jobmetrics.Metrics
}

// NewAuditRetentionJob wires dependencies for the retention handler.
func NewAuditRetentionJob(auditSvc *audit.Service, retentionDays int, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRetentionJob {
	return &AuditRetentionJob{
		Audit:         auditSvc,
		RetentionDays: retentionDays,
		Logger:        logger,
		Metrics:       metrics,
	}
}

// Handle processes audit retention tasks.
func (j *AuditRetentionJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Audit == nil {
		return errors.New("audit retention: handler not configured")
	}
	var payload AuditRetentionPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	days := payload.RetentionDays
	if days <= 0 {
		days = j.RetentionDays
	}
	if days <= 0 {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskAuditRetention)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Int("retention_days", days))
	logger.Info("starting audit retention")

	deleted, err := j.Audit.Prune(ctx, time.Duration(days)*24*time.Hour)
	if err != nil {
		resultErr = err
		logger.Error("prune audit logs", slog.Any("error", err))
		return resultErr
	}

	logger.Info("completed audit retention", slog.Int64("deleted", deleted))
	return resultErr
}

func (j *AuditRetentionJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return jobmetrics.NewMetrics(nil)
}

func (j *AuditRetentionJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
