package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskCacheWarmup pre-populates effective-permission caches.
	TaskCacheWarmup = "authz:cache_warmup"
	// TaskAuditRetention prunes audit log entries past the retention window.
	TaskAuditRetention = "audit:retention"
)

// CacheWarmupPayload scopes which users get their caches warmed.
type CacheWarmupPayload struct {
	// ActiveWithinDays limits warmup to users with a role assignment touched
	// within the window. Zero means the job default.
	ActiveWithinDays int `json:"active_within_days"`
}

// NewCacheWarmupTask constructs an Asynq task for cache warmup.
func NewCacheWarmupTask(payload CacheWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskCacheWarmup, data), nil
}

// AuditRetentionPayload configures a retention run.
type AuditRetentionPayload struct {
	// RetentionDays overrides the configured retention window when positive.
	RetentionDays int `json:"retention_days"`
}

// NewAuditRetentionTask constructs an Asynq task for audit pruning.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}
