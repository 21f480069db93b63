package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/campusflow/procurement/internal/application/port"
	"github.com/campusflow/procurement/internal/domain/entity"
	"github.com/campusflow/procurement/pkg/database"
)

const summaryActionLimit = 10

// AuditLogRepository implements port.AuditRecorder and port.AuditQuerier.
// The audit trail is append-only: this repository defines no update or
// delete operation, and none may be added.
type AuditLogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sql.DB, logger *zap.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Record appends one audit entry
func (r *AuditLogRepository) Record(ctx context.Context, log *entity.AuditLog) error {
	exec := database.ExecutorFrom(ctx, r.db)

	var metadataJSON sql.NullString
	if len(log.Metadata) > 0 {
		b, err := json.Marshal(log.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, timestamp, action, severity, user_id, user_name, user_role,
			request_id, metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.Timestamp,
		string(log.Action),
		string(log.Severity),
		log.UserID,
		log.UserName,
		log.UserRole,
		log.RequestID,
		metadataJSON,
	)
	if err != nil {
		r.logger.Error("Failed to record audit entry",
			zap.String("action", string(log.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to record audit entry: %w", err)
	}
	return nil
}

// List returns audit entries matching the filter, newest first
func (r *AuditLogRepository) List(ctx context.Context, filter entity.AuditFilter) ([]*entity.AuditLog, error) {
	exec := database.ExecutorFrom(ctx, r.db)

	query := `
		SELECT id, timestamp, action, severity, user_id, user_name, user_role,
			request_id, metadata_json
		FROM audit_logs
		WHERE 1=1
	`
	var args []interface{}

	if filter.Since != nil {
		query += " AND timestamp >= ?"
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += " AND timestamp <= ?"
		args = append(args, *filter.Until)
	}
	if len(filter.Actions) > 0 {
		query += " AND action IN (" + placeholders(len(filter.Actions)) + ")"
		for _, a := range filter.Actions {
			args = append(args, string(a))
		}
	}
	if len(filter.Severities) > 0 {
		query += " AND severity IN (" + placeholders(len(filter.Severities)) + ")"
		for _, s := range filter.Severities {
			args = append(args, string(s))
		}
	}
	if filter.UserID != "" {
		query += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.RequestID != "" {
		query += " AND request_id = ?"
		args = append(args, filter.RequestID)
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var out []*entity.AuditLog
	for rows.Next() {
		log, err := scanAuditLog(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, log)
	}
	return out, rows.Err()
}

// Summary returns a user's recent activity digest
func (r *AuditLogRepository) Summary(ctx context.Context, userID string) (*entity.ActivitySummary, error) {
	exec := database.ExecutorFrom(ctx, r.db)

	var total int
	err := exec.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE user_id = ?`, userID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit entries: %w", err)
	}

	recent, err := r.List(ctx, entity.AuditFilter{UserID: userID, Limit: summaryActionLimit})
	if err != nil {
		return nil, err
	}

	summary := &entity.ActivitySummary{
		UserID:       userID,
		TotalActions: total,
	}
	for _, log := range recent {
		summary.RecentActions = append(summary.RecentActions, *log)
	}
	return summary, nil
}

func scanAuditLog(rows *sql.Rows) (*entity.AuditLog, error) {
	var log entity.AuditLog
	var action, severity string
	var metadataJSON sql.NullString

	err := rows.Scan(
		&log.ID,
		&log.Timestamp,
		&action,
		&severity,
		&log.UserID,
		&log.UserName,
		&log.UserRole,
		&log.RequestID,
		&metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit entry: %w", err)
	}

	log.Action = entity.AuditAction(action)
	log.Severity = entity.AuditSeverity(severity)
	if metadataJSON.Valid {
		if err := json.Unmarshal([]byte(metadataJSON.String), &log.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit metadata: %w", err)
		}
	}
	return &log, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Verify interface compliance
var (
	_ port.AuditRecorder = (*AuditLogRepository)(nil)
	_ port.AuditQuerier  = (*AuditLogRepository)(nil)
)
