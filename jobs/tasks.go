// Package jobs hosts the background maintenance tasks and the Asynq worker
// wrapper that runs them.
package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/steward-admin/steward/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsCleanup removes expired login session rows.
	TaskSessionsCleanup = "sessions:cleanup"
	// TaskAuditPrune trims audit entries past the retention window.
	TaskAuditPrune = "audit:prune"
)

// AuditPrunePayload carries the retention window for an audit prune run.
type AuditPrunePayload struct {
	RetentionDays int `json:"retention_days"`
}

// NewSessionsCleanupTask constructs the cleanup task.
func NewSessionsCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskSessionsCleanup, nil)
}

// NewAuditPruneTask constructs a prune task for the given retention window.
func NewAuditPruneTask(retentionDays int) (*asynq.Task, error) {
	data, err := json.Marshal(AuditPrunePayload{RetentionDays: retentionDays})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditPrune, data), nil
}

// Maintenance bundles the periodic database housekeeping handlers.
type Maintenance struct {
	pool    *pgxpool.Pool
	logger  *slog.Logger
	metrics *jobmetrics.Metrics
}

// NewMaintenance constructs the maintenance job set.
func NewMaintenance(pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *Maintenance {
	return &Maintenance{pool: pool, logger: logger, metrics: metrics}
}

// HandleSessionsCleanup deletes session rows whose expiry has passed.
func (m *Maintenance) HandleSessionsCleanup(ctx context.Context, t *asynq.Task) error {
	tracker := m.metrics.Track("sessions_cleanup")
	tag, err := m.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		m.logger.Error("sessions cleanup", slog.Any("error", err))
		return tracker.End(err)
	}
	m.logger.Info("sessions cleanup", slog.Int64("removed", tag.RowsAffected()))
	return tracker.End(nil)
}

// HandleAuditPrune deletes audit entries older than the retention window.
func (m *Maintenance) HandleAuditPrune(ctx context.Context, t *asynq.Task) error {
	var payload AuditPrunePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.RetentionDays <= 0 {
		return asynq.SkipRetry
	}

	tracker := m.metrics.Track("audit_prune")
	cutoff := time.Now().UTC().AddDate(0, 0, -payload.RetentionDays)
	tag, err := m.pool.Exec(ctx, `DELETE FROM audit_logs WHERE occurred_at < $1`, cutoff)
	if err != nil {
		m.logger.Error("audit prune", slog.Any("error", err))
		return tracker.End(err)
	}
	m.logger.Info("audit prune",
		slog.Time("cutoff", cutoff),
		slog.Int64("removed", tag.RowsAffected()))
	return tracker.End(nil)
}
