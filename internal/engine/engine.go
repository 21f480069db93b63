// Package engine orchestrates procurement request transitions through the
// fixed approval chain. All business-rule checks happen before any mutation;
// a successful mutating operation commits exactly one persisted write and
// emits exactly one audit event.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusflow/procurement/internal/application/port"
	"github.com/campusflow/procurement/internal/domain/entity"
	"github.com/campusflow/procurement/internal/domain/workflow"
)

// Actor is the authenticated user context invoking an engine operation
type Actor struct {
	UserID   string
	UserName string
	Role     string
}

// Metrics receives engine operation counters. Implementations must be safe
// for concurrent use.
type Metrics interface {
	ApprovalGranted(step string)
	ApprovalReturned(step string)
	CommentAdded()
	ConflictDetected()
	AuditFailure()
}

type noopMetrics struct{}

func (noopMetrics) ApprovalGranted(string)  {}
func (noopMetrics) ApprovalReturned(string) {}
func (noopMetrics) CommentAdded()           {}
func (noopMetrics) ConflictDetected()       {}
func (noopMetrics) AuditFailure()           {}

// Engine is the workflow engine for procurement requests
type Engine struct {
	store      port.RequestStore
	signatures port.SignatureStore
	audit      port.AuditRecorder
	tx         port.TransactionManager
	metrics    Metrics
	logger     *zap.Logger
}

// New creates a new workflow engine. metrics may be nil.
func New(
	store port.RequestStore,
	signatures port.SignatureStore,
	audit port.AuditRecorder,
	tx port.TransactionManager,
	metrics Metrics,
	logger *zap.Logger,
) *Engine {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Engine{
		store:      store,
		signatures: signatures,
		audit:      audit,
		tx:         tx,
		metrics:    metrics,
		logger:     logger,
	}
}

// TransitionResult reports the outcome of a mutating operation. AuditDegraded
// is set when the business mutation committed but the audit emission failed;
// the state change is not rolled back in that case.
type TransitionResult struct {
	NewStep       workflow.Step
	AuditDegraded bool
}

// ApproveInput carries the optional payload of an approve transition
type ApproveInput struct {
	Comment   string
	Signature *entity.Signature
	Documents []entity.RequestDocument
}

// ReturnInput carries the payload of a return transition. Comment is
// mandatory: work is never sent back without an explanation.
type ReturnInput struct {
	Comment   string
	Documents []entity.RequestDocument
}

// CreateRequestInput is a faculty submission
type CreateRequestInput struct {
	Title         string
	Department    string
	Course        entity.Course
	Category      string
	OrderType     entity.OrderType
	Description   string
	Justification string
	Items         []entity.RequestItem
	Documents     []entity.RequestDocument
}

// CreateRequest creates a new procurement request. The faculty submission
// itself satisfies the entry step, so the request starts pending at the
// first review step.
func (e *Engine) CreateRequest(ctx context.Context, actor Actor, in CreateRequestInput) (*entity.ProcurementRequest, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if !workflow.CanActorApprove(actor.Role, workflow.StepFaculty) {
		return nil, fmt.Errorf("%w: role %q may not submit requests", workflow.ErrForbidden, actor.Role)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", workflow.ErrInvalidArgument)
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("%w: at least one item is required", workflow.ErrInvalidArgument)
	}
	for i, item := range in.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d quantity must be positive", workflow.ErrInvalidArgument, i)
		}
		if item.ApproxAmount < 0 {
			return nil, fmt.Errorf("%w: item %d amount must not be negative", workflow.ErrInvalidArgument, i)
		}
	}

	now := time.Now()
	initialStep, _ := workflow.NextStep(workflow.StepFaculty)

	items := make([]entity.RequestItem, len(in.Items))
	copy(items, in.Items)
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
	}

	req := &entity.ProcurementRequest{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Department:    in.Department,
		Course:        in.Course,
		Category:      in.Category,
		OrderType:     in.OrderType,
		Description:   in.Description,
		Justification: in.Justification,
		Documents:     stampDocuments(in.Documents, actor, workflow.StepFaculty, now),
		CurrentStep:   initialStep,
		CreatedBy:     actor.UserID,
		CreatedByRole: actor.Role,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	req.SetItems(items)

	if err := e.store.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	degraded := e.recordAudit(ctx, entity.AuditRequestCreated, actor, req.ID, map[string]string{
		"title":      req.Title,
		"department": req.Department,
	}, entity.SeverityInfo)

	e.logger.Info("Request created",
		zap.String("request_id", req.ID),
		zap.String("department", req.Department),
		zap.Float64("total_amount", req.TotalAmount),
		zap.Bool("audit_degraded", degraded))

	return req, nil
}

// Approve records an approve transition and advances the request to the
// next step in the chain.
func (e *Engine) Approve(ctx context.Context, requestID string, actor Actor, in ApproveInput) (*TransitionResult, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}

	req, err := e.fetch(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CurrentStep.IsTerminal() {
		return nil, fmt.Errorf("%w: request %s is already completed", workflow.ErrInvalidState, requestID)
	}
	if !workflow.CanActorApprove(actor.Role, req.CurrentStep) {
		return nil, fmt.Errorf("%w: role %q may not act at step %s", workflow.ErrForbidden, actor.Role, req.CurrentStep)
	}

	cfg, _ := workflow.StepConfigFor(req.CurrentStep)
	if cfg.RequiresSignature && in.Signature == nil {
		return nil, fmt.Errorf("%w: step %s requires a signature", workflow.ErrInvalidArgument, req.CurrentStep)
	}

	now := time.Now()
	sig := in.Signature
	if sig != nil {
		if sig.ID == "" {
			sig.ID = uuid.NewString()
		}
		if sig.Timestamp.IsZero() {
			sig.Timestamp = now
		}
	}

	docs := stampDocuments(in.Documents, actor, req.CurrentStep, now)

	action := &entity.WorkflowAction{
		Step:      req.CurrentStep,
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		UserRole:  actor.Role,
		Action:    entity.ActionApprove,
		Comment:   in.Comment,
		Signature: sig,
		Documents: docs,
		Timestamp: now,
	}

	// Every non-terminal step has a successor in the table
	newStep := req.CurrentStep
	if next, ok := workflow.NextStep(req.CurrentStep); ok {
		newStep = next
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.store.SetStep(txCtx, req.ID, newStep, now, req.UpdatedAt); err != nil {
			return err
		}
		if err := e.store.AppendAction(txCtx, req.ID, action); err != nil {
			return err
		}
		if in.Comment != "" {
			comment := e.transitionComment(actor, in.Comment, entity.ActionApprove, req.CurrentStep, now)
			if err := e.store.AppendComment(txCtx, req.ID, comment); err != nil {
				return err
			}
		}
		if len(docs) > 0 {
			if err := e.store.AppendDocuments(txCtx, req.ID, docs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, workflow.ErrConflict) {
			e.metrics.ConflictDetected()
		}
		return nil, fmt.Errorf("failed to approve request %s: %w", requestID, err)
	}

	e.metrics.ApprovalGranted(req.CurrentStep.String())

	degraded := e.recordAudit(ctx, entity.AuditApprovalGranted, actor, req.ID, map[string]string{
		"from_step": req.CurrentStep.String(),
		"to_step":   newStep.String(),
	}, entity.SeverityInfo)

	e.logger.Info("Request approved",
		zap.String("request_id", req.ID),
		zap.String("from_step", req.CurrentStep.String()),
		zap.String("to_step", newStep.String()),
		zap.String("user_id", actor.UserID))

	return &TransitionResult{NewStep: newStep, AuditDegraded: degraded}, nil
}

// Return records a return transition and sends the request back to the
// previous step. A non-empty comment is a hard business rule.
func (e *Engine) Return(ctx context.Context, requestID string, actor Actor, in ReturnInput) (*TransitionResult, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Comment) == "" {
		return nil, fmt.Errorf("%w: return requires a non-empty comment", workflow.ErrInvalidArgument)
	}

	req, err := e.fetch(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CurrentStep.IsTerminal() {
		return nil, fmt.Errorf("%w: request %s is already completed", workflow.ErrInvalidState, requestID)
	}
	if !workflow.CanActorApprove(actor.Role, req.CurrentStep) {
		return nil, fmt.Errorf("%w: role %q may not act at step %s", workflow.ErrForbidden, actor.Role, req.CurrentStep)
	}

	prev, ok := workflow.PreviousStep(req.CurrentStep)
	if !ok {
		return nil, fmt.Errorf("%w: cannot return past the first step", workflow.ErrInvalidState)
	}

	now := time.Now()
	docs := stampDocuments(in.Documents, actor, req.CurrentStep, now)

	action := &entity.WorkflowAction{
		Step:      req.CurrentStep,
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		UserRole:  actor.Role,
		Action:    entity.ActionReturn,
		Comment:   in.Comment,
		Documents: docs,
		Timestamp: now,
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.store.SetStep(txCtx, req.ID, prev, now, req.UpdatedAt); err != nil {
			return err
		}
		if err := e.store.AppendAction(txCtx, req.ID, action); err != nil {
			return err
		}
		comment := e.transitionComment(actor, in.Comment, entity.ActionReturn, req.CurrentStep, now)
		if err := e.store.AppendComment(txCtx, req.ID, comment); err != nil {
			return err
		}
		if len(docs) > 0 {
			if err := e.store.AppendDocuments(txCtx, req.ID, docs); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, workflow.ErrConflict) {
			e.metrics.ConflictDetected()
		}
		return nil, fmt.Errorf("failed to return request %s: %w", requestID, err)
	}

	e.metrics.ApprovalReturned(req.CurrentStep.String())

	degraded := e.recordAudit(ctx, entity.AuditApprovalReturned, actor, req.ID, map[string]string{
		"from_step": req.CurrentStep.String(),
		"to_step":   prev.String(),
		"comment":   in.Comment,
	}, entity.SeverityInfo)

	e.logger.Info("Request returned",
		zap.String("request_id", req.ID),
		zap.String("from_step", req.CurrentStep.String()),
		zap.String("to_step", prev.String()),
		zap.String("user_id", actor.UserID))

	return &TransitionResult{NewStep: prev, AuditDegraded: degraded}, nil
}

// AddComment appends a plain discussion comment. Any recognized participant
// may comment; the current step does not change.
func (e *Engine) AddComment(ctx context.Context, requestID string, actor Actor, text string) (*TransitionResult, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: comment text is required", workflow.ErrInvalidArgument)
	}

	req, err := e.fetch(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	comment := &entity.Comment{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		UserRole:  actor.Role,
		Text:      text,
		Timestamp: now,
	}

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.store.Touch(txCtx, req.ID, now, req.UpdatedAt); err != nil {
			return err
		}
		return e.store.AppendComment(txCtx, req.ID, comment)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrConflict) {
			e.metrics.ConflictDetected()
		}
		return nil, fmt.Errorf("failed to add comment to request %s: %w", requestID, err)
	}

	e.metrics.CommentAdded()

	degraded := e.recordAudit(ctx, entity.AuditCommentAdded, actor, req.ID, map[string]string{
		"comment": text,
	}, entity.SeverityInfo)

	return &TransitionResult{NewStep: req.CurrentStep, AuditDegraded: degraded}, nil
}

// AttachDocuments appends supporting documents outside of a transition.
// Principals review but never attach; an admin may always attach.
func (e *Engine) AttachDocuments(ctx context.Context, requestID string, actor Actor, docs []entity.RequestDocument) (*TransitionResult, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no documents given", workflow.ErrInvalidArgument)
	}
	if actor.Role == workflow.RolePrincipal {
		return nil, fmt.Errorf("%w: role %q may not attach documents", workflow.ErrForbidden, actor.Role)
	}

	req, err := e.fetch(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.CurrentStep.IsTerminal() {
		return nil, fmt.Errorf("%w: request %s is already completed", workflow.ErrInvalidState, requestID)
	}

	now := time.Now()
	stamped := stampDocuments(docs, actor, req.CurrentStep, now)

	err = e.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := e.store.Touch(txCtx, req.ID, now, req.UpdatedAt); err != nil {
			return err
		}
		return e.store.AppendDocuments(txCtx, req.ID, stamped)
	})
	if err != nil {
		if errors.Is(err, workflow.ErrConflict) {
			e.metrics.ConflictDetected()
		}
		return nil, fmt.Errorf("failed to attach documents to request %s: %w", requestID, err)
	}

	names := make([]string, len(stamped))
	for i, d := range stamped {
		names[i] = d.Name
	}
	degraded := e.recordAudit(ctx, entity.AuditDocumentAttached, actor, req.ID, map[string]string{
		"documents": strings.Join(names, ", "),
		"count":     fmt.Sprintf("%d", len(stamped)),
	}, entity.SeverityInfo)

	return &TransitionResult{NewStep: req.CurrentStep, AuditDegraded: degraded}, nil
}

// DeleteRequest removes a request entirely. Administrative override only;
// deletion is not part of the workflow.
func (e *Engine) DeleteRequest(ctx context.Context, requestID string, actor Actor) error {
	if err := validateActor(actor); err != nil {
		return err
	}
	if actor.Role != workflow.RoleAdmin {
		return fmt.Errorf("%w: only admin may delete requests", workflow.ErrForbidden)
	}

	req, err := e.fetch(ctx, requestID)
	if err != nil {
		return err
	}

	if err := e.store.Delete(ctx, req.ID); err != nil {
		return fmt.Errorf("failed to delete request %s: %w", requestID, err)
	}

	e.recordAudit(ctx, entity.AuditRequestDeleted, actor, req.ID, map[string]string{
		"title": req.Title,
		"step":  req.CurrentStep.String(),
	}, entity.SeverityWarning)

	e.logger.Warn("Request deleted",
		zap.String("request_id", req.ID),
		zap.String("user_id", actor.UserID))

	return nil
}

// SaveSignature stores a reusable signature for the actor
func (e *Engine) SaveSignature(ctx context.Context, actor Actor, kind entity.SignatureKind, data string) (*entity.Signature, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	switch kind {
	case entity.SignatureDraw, entity.SignatureUpload, entity.SignatureTyped:
	default:
		return nil, fmt.Errorf("%w: unknown signature kind %q", workflow.ErrInvalidArgument, kind)
	}
	if data == "" {
		return nil, fmt.Errorf("%w: signature data is required", workflow.ErrInvalidArgument)
	}

	sig := &entity.Signature{
		ID:        uuid.NewString(),
		Kind:      kind,
		Data:      data,
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		Timestamp: time.Now(),
	}

	if err := e.signatures.Save(ctx, sig); err != nil {
		return nil, fmt.Errorf("failed to save signature: %w", err)
	}

	e.recordAudit(ctx, entity.AuditSignatureAdded, actor, "", map[string]string{
		"signature_kind": string(kind),
	}, entity.SeverityInfo)

	return sig, nil
}

// UserSignatures lists the signatures saved by a user
func (e *Engine) UserSignatures(ctx context.Context, userID string) ([]*entity.Signature, error) {
	return e.signatures.ListByUser(ctx, userID)
}

// GetRequest returns the full aggregate for a request id
func (e *Engine) GetRequest(ctx context.Context, requestID string) (*entity.ProcurementRequest, error) {
	return e.fetch(ctx, requestID)
}

// ListRequests returns requests matching the filter
func (e *Engine) ListRequests(ctx context.Context, filter port.RequestFilter) ([]*entity.ProcurementRequest, error) {
	return e.store.List(ctx, filter)
}

// ListPendingForRole returns all requests currently waiting on the given
// role, in chain order.
func (e *Engine) ListPendingForRole(ctx context.Context, role string) ([]*entity.ProcurementRequest, error) {
	var out []*entity.ProcurementRequest
	for _, step := range workflow.StepsForRole(role) {
		reqs, err := e.store.ListByStep(ctx, step)
		if err != nil {
			return nil, fmt.Errorf("failed to list requests at step %s: %w", step, err)
		}
		out = append(out, reqs...)
	}
	return out, nil
}

// PendingCounts returns the number of open requests per step
func (e *Engine) PendingCounts(ctx context.Context) (map[workflow.Step]int, error) {
	return e.store.CountByStep(ctx)
}

func (e *Engine) fetch(ctx context.Context, requestID string) (*entity.ProcurementRequest, error) {
	if requestID == "" {
		return nil, fmt.Errorf("%w: request id is required", workflow.ErrInvalidArgument)
	}
	req, err := e.store.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("failed to get request %s: %w", requestID, err)
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", workflow.ErrNotFound, requestID)
	}
	return req, nil
}

func (e *Engine) transitionComment(actor Actor, text string, action entity.ActionType, step workflow.Step, ts time.Time) *entity.Comment {
	return &entity.Comment{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		UserRole:  actor.Role,
		Text:      text,
		Timestamp: ts,
		Action:    action,
		Step:      step,
	}
}

// recordAudit emits one audit event. Audit failure after a committed
// mutation is degraded operation, not a business failure: it is logged at
// error severity and surfaced via the result, never rolled back.
func (e *Engine) recordAudit(ctx context.Context, action entity.AuditAction, actor Actor, requestID string, metadata map[string]string, severity entity.AuditSeverity) bool {
	log := &entity.AuditLog{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Severity:  severity,
		UserID:    actor.UserID,
		UserName:  actor.UserName,
		UserRole:  actor.Role,
		RequestID: requestID,
		Metadata:  metadata,
	}
	if err := e.audit.Record(ctx, log); err != nil {
		e.metrics.AuditFailure()
		e.logger.Error("Audit recording failed, operation already committed",
			zap.String("action", string(action)),
			zap.String("request_id", requestID),
			zap.Error(err))
		return true
	}
	return false
}

func validateActor(actor Actor) error {
	if actor.UserID == "" || actor.Role == "" {
		return fmt.Errorf("%w: actor user id and role are required", workflow.ErrInvalidArgument)
	}
	return nil
}

func stampDocuments(docs []entity.RequestDocument, actor Actor, step workflow.Step, ts time.Time) []entity.RequestDocument {
	if len(docs) == 0 {
		return nil
	}
	out := make([]entity.RequestDocument, len(docs))
	copy(out, docs)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = uuid.NewString()
		}
		out[i].UploadedBy = actor.UserID
		t := ts
		out[i].UploadedAt = &t
		out[i].UploadedAtStep = step
	}
	return out
}
