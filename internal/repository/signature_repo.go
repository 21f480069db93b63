package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/campusflow/procurement/internal/application/port"
	"github.com/campusflow/procurement/internal/domain/entity"
	"github.com/campusflow/procurement/pkg/database"
)

// SignatureRepository implements port.SignatureStore
type SignatureRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSignatureRepository creates a new signature repository
func NewSignatureRepository(db *sql.DB, logger *zap.Logger) port.SignatureStore {
	return &SignatureRepository{
		db:     db,
		logger: logger,
	}
}

// Save persists a signature
func (r *SignatureRepository) Save(ctx context.Context, sig *entity.Signature) error {
	exec := database.ExecutorFrom(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO signatures (id, kind, data, user_id, user_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sig.ID,
		string(sig.Kind),
		sig.Data,
		sig.UserID,
		sig.UserName,
		sig.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to save signature", zap.String("user_id", sig.UserID), zap.Error(err))
		return fmt.Errorf("failed to save signature: %w", err)
	}
	return nil
}

// GetByID retrieves a signature by id, or (nil, nil) when absent
func (r *SignatureRepository) GetByID(ctx context.Context, id string) (*entity.Signature, error) {
	exec := database.ExecutorFrom(ctx, r.db)

	var sig entity.Signature
	var kind string
	err := exec.QueryRowContext(ctx, `
		SELECT id, kind, data, user_id, user_name, created_at
		FROM signatures WHERE id = ?`, id).
		Scan(&sig.ID, &kind, &sig.Data, &sig.UserID, &sig.UserName, &sig.Timestamp)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get signature", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get signature: %w", err)
	}
	sig.Kind = entity.SignatureKind(kind)
	return &sig, nil
}

// ListByUser returns a user's saved signatures, newest first
func (r *SignatureRepository) ListByUser(ctx context.Context, userID string) ([]*entity.Signature, error) {
	exec := database.ExecutorFrom(ctx, r.db)

	rows, err := exec.QueryContext(ctx, `
		SELECT id, kind, data, user_id, user_name, created_at
		FROM signatures WHERE user_id = ? ORDER BY created_at DESC`, userID)
	if err != nil {
		r.logger.Error("Failed to list signatures", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}
	defer rows.Close()

	var out []*entity.Signature
	for rows.Next() {
		var sig entity.Signature
		var kind string
		if err := rows.Scan(&sig.ID, &kind, &sig.Data, &sig.UserID, &sig.UserName, &sig.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan signature: %w", err)
		}
		sig.Kind = entity.SignatureKind(kind)
		out = append(out, &sig)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.SignatureStore = (*SignatureRepository)(nil)
