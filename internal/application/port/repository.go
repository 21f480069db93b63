package port

import (
	"context"
	"time"

	"github.com/campusflow/procurement/internal/domain/entity"
	"github.com/campusflow/procurement/internal/domain/workflow"
)

// RequestFilter narrows request list queries. Zero values mean "any".
type RequestFilter struct {
	Department string
	Step       workflow.Step
	CreatedBy  string
	Since      *time.Time
	Until      *time.Time
}

// RequestStore is the durable store for procurement request aggregates.
//
// GetByID returns (nil, nil) when no request exists for the id. List and
// ListByStep return request rows without child collections loaded; GetByID
// assembles the full aggregate.
//
// The mutating step methods take the UpdatedAt value the caller read before
// deciding on the mutation; implementations must make the write conditional
// on it and return workflow.ErrConflict when another writer got there first.
// Append methods are insert-only: history, comments and documents are never
// rewritten.
type RequestStore interface {
	Create(ctx context.Context, req *entity.ProcurementRequest) error
	GetByID(ctx context.Context, id string) (*entity.ProcurementRequest, error)
	List(ctx context.Context, filter RequestFilter) ([]*entity.ProcurementRequest, error)
	ListByStep(ctx context.Context, step workflow.Step) ([]*entity.ProcurementRequest, error)
	CountByStep(ctx context.Context) (map[workflow.Step]int, error)

	SetStep(ctx context.Context, id string, step workflow.Step, updatedAt, prevUpdatedAt time.Time) error
	Touch(ctx context.Context, id string, updatedAt, prevUpdatedAt time.Time) error
	AppendAction(ctx context.Context, requestID string, action *entity.WorkflowAction) error
	AppendComment(ctx context.Context, requestID string, comment *entity.Comment) error
	AppendDocuments(ctx context.Context, requestID string, docs []entity.RequestDocument) error

	// Delete removes a request and its children. Administrative override
	// only; never called from the workflow path.
	Delete(ctx context.Context, id string) error
}

// SignatureStore persists reusable user signatures
type SignatureStore interface {
	Save(ctx context.Context, sig *entity.Signature) error
	GetByID(ctx context.Context, id string) (*entity.Signature, error)
	ListByUser(ctx context.Context, userID string) ([]*entity.Signature, error)
}

// AuditRecorder receives one immutable event per mutating engine operation.
// Implementations must be append-only: recorded entries are never updated
// or deleted.
type AuditRecorder interface {
	Record(ctx context.Context, log *entity.AuditLog) error
}

// AuditQuerier exposes the read side of the audit trail
type AuditQuerier interface {
	List(ctx context.Context, filter entity.AuditFilter) ([]*entity.AuditLog, error)
	Summary(ctx context.Context, userID string) (*entity.ActivitySummary, error)
}

// TransactionManager runs a function within a database transaction. The
// transaction is carried in the context so repositories can join it.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
