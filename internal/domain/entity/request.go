package entity

import (
	"time"

	"github.com/campusflow/procurement/internal/domain/workflow"
)

// Course classifies the requesting programme
type Course string

const (
	CourseUG Course = "UG"
	CoursePG Course = "PG"
)

// OrderType buckets a request by its approximate value
type OrderType string

const (
	OrderTypeBelow25K  OrderType = "<25000"
	OrderTypeAbove25K  OrderType = ">25000"
	OrderTypeAbove100K OrderType = ">100000"
)

// ActionType tags a comment or workflow action with the operation that produced it
type ActionType string

const (
	ActionApprove ActionType = "approve"
	ActionReturn  ActionType = "return"
	ActionComment ActionType = "comment"
)

// RequestItem is a single line item of a procurement request.
// Items are owned exclusively by their request and never shared.
type RequestItem struct {
	ID           string  `json:"id"`
	ItemName     string  `json:"item_name"`
	Quantity     int     `json:"quantity"`
	ApproxAmount float64 `json:"approx_amount"`
}

// RequestDocument is a supporting file attached to a request. The document
// list is append-only: entries are never edited in place, only appended or
// administratively removed.
type RequestDocument struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	SizeBytes      int64         `json:"size_bytes"`
	MimeType       string        `json:"mime_type"`
	ContentRef     string        `json:"content_ref"`
	UploadedBy     string        `json:"uploaded_by,omitempty"`
	UploadedAt     *time.Time    `json:"uploaded_at,omitempty"`
	UploadedAtStep workflow.Step `json:"uploaded_at_step,omitempty"`
}

// SignatureKind identifies how a signature was captured
type SignatureKind string

const (
	SignatureDraw   SignatureKind = "draw"
	SignatureUpload SignatureKind = "upload"
	SignatureTyped  SignatureKind = "type"
)

// Signature is an immutable sign-off artifact. Data holds base64 image
// content for draw/upload signatures and plain text for typed ones.
type Signature struct {
	ID        string        `json:"id"`
	Kind      SignatureKind `json:"kind"`
	Data      string        `json:"data"`
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name"`
	Timestamp time.Time     `json:"timestamp"`
}

// Comment is a discussion entry on a request. Comments are append-only and
// ordered by timestamp; Action is set when the comment was produced by an
// approve or return transition.
type Comment struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name"`
	UserRole  string        `json:"user_role"`
	Text      string        `json:"text"`
	Timestamp time.Time     `json:"timestamp"`
	Action    ActionType    `json:"action,omitempty"`
	Step      workflow.Step `json:"step,omitempty"`
}

// WorkflowAction is the immutable record of one approve/return transition
type WorkflowAction struct {
	Step      workflow.Step     `json:"step"`
	UserID    string            `json:"user_id"`
	UserName  string            `json:"user_name"`
	UserRole  string            `json:"user_role"`
	Action    ActionType        `json:"action"`
	Comment   string            `json:"comment,omitempty"`
	Signature *Signature        `json:"signature,omitempty"`
	Documents []RequestDocument `json:"documents,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// ProcurementRequest is the aggregate root for a purchase request and all
// of its owned sub-collections. CurrentStep only changes through workflow
// engine transitions; WorkflowHistory grows by exactly one entry per
// approve/return and is never rewritten.
type ProcurementRequest struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Department      string            `json:"department"`
	Course          Course            `json:"course"`
	Category        string            `json:"category"`
	OrderType       OrderType         `json:"order_type"`
	Description     string            `json:"description"`
	Justification   string            `json:"justification"`
	Items           []RequestItem     `json:"items"`
	TotalAmount     float64           `json:"total_amount"`
	Documents       []RequestDocument `json:"documents"`
	CurrentStep     workflow.Step     `json:"current_step"`
	CreatedBy       string            `json:"created_by"`
	CreatedByRole   string            `json:"created_by_role"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Comments        []Comment         `json:"comments"`
	WorkflowHistory []WorkflowAction  `json:"workflow_history"`
}

// RecomputeTotal refreshes TotalAmount from the item list. Callers must
// invoke it after every item mutation.
func (r *ProcurementRequest) RecomputeTotal() {
	var total float64
	for _, item := range r.Items {
		total += item.ApproxAmount
	}
	r.TotalAmount = total
}

// SetItems replaces the item list and keeps TotalAmount in sync
func (r *ProcurementRequest) SetItems(items []RequestItem) {
	r.Items = items
	r.RecomputeTotal()
}

// AddItem appends a line item and keeps TotalAmount in sync
func (r *ProcurementRequest) AddItem(item RequestItem) {
	r.Items = append(r.Items, item)
	r.RecomputeTotal()
}
