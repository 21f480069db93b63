package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campusflow/procurement/internal/application/port"
	"github.com/campusflow/procurement/internal/domain/entity"
	"github.com/campusflow/procurement/internal/domain/workflow"
	"github.com/campusflow/procurement/pkg/database"
)

// RequestRepository implements port.RequestStore over SQLite. The aggregate
// spans the requests table plus its child tables; children are insert-only
// except for the administrative delete, which cascades.
type RequestRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db *sql.DB, logger *zap.Logger) port.RequestStore {
	return &RequestRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new request aggregate
func (r *RequestRepository) Create(ctx context.Context, req *entity.ProcurementRequest) error {
	exec := database.ExecutorFrom(ctx, r.db)

	query := `
		INSERT INTO requests (
			id, title, department, course, category, order_type,
			description, justification, total_amount, current_step,
			created_by, created_by_role, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := exec.ExecContext(ctx, query,
		req.ID,
		req.Title,
		req.Department,
		string(req.Course),
		req.Category,
		string(req.OrderType),
		req.Description,
		req.Justification,
		req.TotalAmount,
		req.CurrentStep.String(),
		req.CreatedBy,
		req.CreatedByRole,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create request", zap.String("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to create request: %w", err)
	}

	for i, item := range req.Items {
		_, err := exec.ExecContext(ctx, `
			INSERT INTO request_items (id, request_id, item_name, quantity, approx_amount, position)
			VALUES (?, ?, ?, ?, ?, ?)`,
			item.ID, req.ID, item.ItemName, item.Quantity, item.ApproxAmount, i,
		)
		if err != nil {
			return fmt.Errorf("failed to create request item: %w", err)
		}
	}

	if len(req.Documents) > 0 {
		if err := r.AppendDocuments(ctx, req.ID, req.Documents); err != nil {
			return err
		}
	}

	return nil
}

// GetByID assembles the full aggregate, or returns (nil, nil) when absent
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*entity.ProcurementRequest, error) {
	exec := database.ExecutorFrom(ctx, r.db)

	query := `
		SELECT id, title, department, course, category, order_type,
			description, justification, total_amount, current_step,
			created_by, created_by_role, created_at, updated_at
		FROM requests
		WHERE id = ?
	`

	req, err := scanRequest(exec.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get request", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get request: %w", err)
	}

	if err := r.loadChildren(ctx, exec, req); err != nil {
		return nil, err
	}

	return req, nil
}

// List returns request rows matching the filter, newest first. Child
// collections are not loaded.
func (r *RequestRepository) List(ctx context.Context, filter port.RequestFilter) ([]*entity.ProcurementRequest, error) {
	exec := database.ExecutorFrom(ctx, r.db)

	query := `
		SELECT id, title, department, course, category, order_type,
			description, justification, total_amount, current_step,
			created_by, created_by_role, created_at, updated_at
		FROM requests
		WHERE 1=1
	`
	var args []interface{}

	if filter.Department != "" {
		query += " AND department = ?"
		args = append(args, filter.Department)
	}
	if filter.Step != "" {
		query += " AND current_step = ?"
		args = append(args, filter.Step.String())
	}
	if filter.CreatedBy != "" {
		query += " AND created_by = ?"
		args = append(args, filter.CreatedBy)
	}
	if filter.Since != nil {
		query += " AND created_at >= ?"
		args = append(args, *filter.Since)
	}
	if filter.Until != nil {
		query += " AND created_at <= ?"
		args = append(args, *filter.Until)
	}
	query += " ORDER BY created_at DESC"

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list requests", zap.Error(err))
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}
	defer rows.Close()

	return collectRequests(rows)
}

// ListByStep returns request rows pending at the given step
func (r *RequestRepository) ListByStep(ctx context.Context, step workflow.Step) ([]*entity.ProcurementRequest, error) {
	return r.List(ctx, port.RequestFilter{Step: step})
}

// CountByStep returns the number of requests per current step
func (r *RequestRepository) CountByStep(ctx context.Context) (map[workflow.Step]int, error) {
	exec := database.ExecutorFrom(ctx, r.db)

	rows, err := exec.QueryContext(ctx, `SELECT current_step, COUNT(*) FROM requests GROUP BY current_step`)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests by step: %w", err)
	}
	defer rows.Close()

	counts := make(map[workflow.Step]int)
	for rows.Next() {
		var step string
		var n int
		if err := rows.Scan(&step, &n); err != nil {
			return nil, fmt.Errorf("failed to scan step count: %w", err)
		}
		counts[workflow.Step(step)] = n
	}
	return counts, rows.Err()
}

// SetStep moves the request to step, conditional on prevUpdatedAt. A stale
// token means another writer committed first.
func (r *RequestRepository) SetStep(ctx context.Context, id string, step workflow.Step, updatedAt, prevUpdatedAt time.Time) error {
	exec := database.ExecutorFrom(ctx, r.db)

	result, err := exec.ExecContext(ctx,
		`UPDATE requests SET current_step = ?, updated_at = ? WHERE id = ? AND updated_at = ?`,
		step.String(), updatedAt, id, prevUpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to set step", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to set step: %w", err)
	}
	return r.checkConditionalWrite(result, id)
}

// Touch bumps updated_at, conditional on prevUpdatedAt
func (r *RequestRepository) Touch(ctx context.Context, id string, updatedAt, prevUpdatedAt time.Time) error {
	exec := database.ExecutorFrom(ctx, r.db)

	result, err := exec.ExecContext(ctx,
		`UPDATE requests SET updated_at = ? WHERE id = ? AND updated_at = ?`,
		updatedAt, id, prevUpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to touch request", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to touch request: %w", err)
	}
	return r.checkConditionalWrite(result, id)
}

// AppendAction inserts one workflow history entry
func (r *RequestRepository) AppendAction(ctx context.Context, requestID string, action *entity.WorkflowAction) error {
	exec := database.ExecutorFrom(ctx, r.db)

	var sigJSON, docsJSON sql.NullString
	if action.Signature != nil {
		b, err := json.Marshal(action.Signature)
		if err != nil {
			return fmt.Errorf("failed to marshal action signature: %w", err)
		}
		sigJSON = sql.NullString{String: string(b), Valid: true}
	}
	if len(action.Documents) > 0 {
		b, err := json.Marshal(action.Documents)
		if err != nil {
			return fmt.Errorf("failed to marshal action documents: %w", err)
		}
		docsJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := exec.ExecContext(ctx, `
		INSERT INTO workflow_actions (
			request_id, step, user_id, user_name, user_role,
			action, comment, signature_json, documents_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		requestID,
		action.Step.String(),
		action.UserID,
		action.UserName,
		action.UserRole,
		string(action.Action),
		action.Comment,
		sigJSON,
		docsJSON,
		action.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append action", zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to append workflow action: %w", err)
	}
	return nil
}

// AppendComment inserts one comment
func (r *RequestRepository) AppendComment(ctx context.Context, requestID string, comment *entity.Comment) error {
	exec := database.ExecutorFrom(ctx, r.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO request_comments (
			id, request_id, user_id, user_name, user_role, body, action, step, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		comment.ID,
		requestID,
		comment.UserID,
		comment.UserName,
		comment.UserRole,
		comment.Text,
		string(comment.Action),
		comment.Step.String(),
		comment.Timestamp,
	)
	if err != nil {
		r.logger.Error("Failed to append comment", zap.String("request_id", requestID), zap.Error(err))
		return fmt.Errorf("failed to append comment: %w", err)
	}
	return nil
}

// AppendDocuments inserts document entries
func (r *RequestRepository) AppendDocuments(ctx context.Context, requestID string, docs []entity.RequestDocument) error {
	exec := database.ExecutorFrom(ctx, r.db)

	for _, doc := range docs {
		var uploadedAt sql.NullTime
		if doc.UploadedAt != nil {
			uploadedAt = sql.NullTime{Time: *doc.UploadedAt, Valid: true}
		}

		_, err := exec.ExecContext(ctx, `
			INSERT INTO request_documents (
				id, request_id, name, size_bytes, mime_type, content_ref,
				uploaded_by, uploaded_at, uploaded_at_step
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			doc.ID,
			requestID,
			doc.Name,
			doc.SizeBytes,
			doc.MimeType,
			doc.ContentRef,
			doc.UploadedBy,
			uploadedAt,
			doc.UploadedAtStep.String(),
		)
		if err != nil {
			r.logger.Error("Failed to append document", zap.String("request_id", requestID), zap.Error(err))
			return fmt.Errorf("failed to append document: %w", err)
		}
	}
	return nil
}

// Delete removes the request; child rows cascade
func (r *RequestRepository) Delete(ctx context.Context, id string) error {
	exec := database.ExecutorFrom(ctx, r.db)

	_, err := exec.ExecContext(ctx, `DELETE FROM requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete request", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete request: %w", err)
	}
	return nil
}

func (r *RequestRepository) checkConditionalWrite(result sql.Result, id string) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		r.logger.Warn("Conditional write lost to concurrent modification", zap.String("id", id))
		return fmt.Errorf("%w: request %s", workflow.ErrConflict, id)
	}
	return nil
}

func (r *RequestRepository) loadChildren(ctx context.Context, exec database.Executor, req *entity.ProcurementRequest) error {
	items, err := exec.QueryContext(ctx, `
		SELECT id, item_name, quantity, approx_amount
		FROM request_items WHERE request_id = ? ORDER BY position`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load items: %w", err)
	}
	defer items.Close()
	for items.Next() {
		var item entity.RequestItem
		if err := items.Scan(&item.ID, &item.ItemName, &item.Quantity, &item.ApproxAmount); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		req.Items = append(req.Items, item)
	}
	if err := items.Err(); err != nil {
		return err
	}

	docs, err := exec.QueryContext(ctx, `
		SELECT id, name, size_bytes, mime_type, content_ref, uploaded_by, uploaded_at, uploaded_at_step
		FROM request_documents WHERE request_id = ? ORDER BY rowid`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load documents: %w", err)
	}
	defer docs.Close()
	for docs.Next() {
		var doc entity.RequestDocument
		var uploadedBy sql.NullString
		var uploadedAt sql.NullTime
		var uploadedAtStep sql.NullString
		if err := docs.Scan(&doc.ID, &doc.Name, &doc.SizeBytes, &doc.MimeType, &doc.ContentRef,
			&uploadedBy, &uploadedAt, &uploadedAtStep); err != nil {
			return fmt.Errorf("failed to scan document: %w", err)
		}
		doc.UploadedBy = uploadedBy.String
		if uploadedAt.Valid {
			t := uploadedAt.Time
			doc.UploadedAt = &t
		}
		doc.UploadedAtStep = workflow.Step(uploadedAtStep.String)
		req.Documents = append(req.Documents, doc)
	}
	if err := docs.Err(); err != nil {
		return err
	}

	comments, err := exec.QueryContext(ctx, `
		SELECT id, user_id, user_name, user_role, body, action, step, created_at
		FROM request_comments WHERE request_id = ? ORDER BY created_at, rowid`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load comments: %w", err)
	}
	defer comments.Close()
	for comments.Next() {
		var c entity.Comment
		var action, step string
		if err := comments.Scan(&c.ID, &c.UserID, &c.UserName, &c.UserRole, &c.Text, &action, &step, &c.Timestamp); err != nil {
			return fmt.Errorf("failed to scan comment: %w", err)
		}
		c.Action = entity.ActionType(action)
		c.Step = workflow.Step(step)
		req.Comments = append(req.Comments, c)
	}
	if err := comments.Err(); err != nil {
		return err
	}

	actions, err := exec.QueryContext(ctx, `
		SELECT step, user_id, user_name, user_role, action, comment, signature_json, documents_json, created_at
		FROM workflow_actions WHERE request_id = ? ORDER BY id`, req.ID)
	if err != nil {
		return fmt.Errorf("failed to load workflow history: %w", err)
	}
	defer actions.Close()
	for actions.Next() {
		var a entity.WorkflowAction
		var step, actionType string
		var sigJSON, docsJSON sql.NullString
		if err := actions.Scan(&step, &a.UserID, &a.UserName, &a.UserRole, &actionType,
			&a.Comment, &sigJSON, &docsJSON, &a.Timestamp); err != nil {
			return fmt.Errorf("failed to scan workflow action: %w", err)
		}
		a.Step = workflow.Step(step)
		a.Action = entity.ActionType(actionType)
		if sigJSON.Valid {
			var sig entity.Signature
			if err := json.Unmarshal([]byte(sigJSON.String), &sig); err != nil {
				return fmt.Errorf("failed to unmarshal action signature: %w", err)
			}
			a.Signature = &sig
		}
		if docsJSON.Valid {
			if err := json.Unmarshal([]byte(docsJSON.String), &a.Documents); err != nil {
				return fmt.Errorf("failed to unmarshal action documents: %w", err)
			}
		}
		req.WorkflowHistory = append(req.WorkflowHistory, a)
	}
	return actions.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*entity.ProcurementRequest, error) {
	var req entity.ProcurementRequest
	var course, orderType, step string

	err := row.Scan(
		&req.ID,
		&req.Title,
		&req.Department,
		&course,
		&req.Category,
		&orderType,
		&req.Description,
		&req.Justification,
		&req.TotalAmount,
		&step,
		&req.CreatedBy,
		&req.CreatedByRole,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Course = entity.Course(course)
	req.OrderType = entity.OrderType(orderType)
	req.CurrentStep = workflow.Step(step)
	return &req, nil
}

func collectRequests(rows *sql.Rows) ([]*entity.ProcurementRequest, error) {
	var out []*entity.ProcurementRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

// Verify interface compliance
var _ port.RequestStore = (*RequestRepository)(nil)
