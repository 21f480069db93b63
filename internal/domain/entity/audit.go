package entity

import "time"

// AuditAction identifies what kind of event an audit entry records
type AuditAction string

const (
	AuditRequestCreated   AuditAction = "request_created"
	AuditRequestUpdated   AuditAction = "request_updated"
	AuditRequestDeleted   AuditAction = "request_deleted"
	AuditApprovalGranted  AuditAction = "approval_granted"
	AuditApprovalReturned AuditAction = "approval_returned"
	AuditCommentAdded     AuditAction = "comment_added"
	AuditDocumentAttached AuditAction = "document_attached"
	AuditDocumentDeleted  AuditAction = "document_deleted"
	AuditSignatureAdded   AuditAction = "signature_added"
)

// AuditSeverity classifies audit entries for filtering and alerting
type AuditSeverity string

const (
	SeverityInfo     AuditSeverity = "info"
	SeverityWarning  AuditSeverity = "warning"
	SeverityError    AuditSeverity = "error"
	SeverityCritical AuditSeverity = "critical"
)

// AuditLog is one immutable entry in the append-only audit trail. Entries
// are only ever inserted; there is no update or delete path for them.
type AuditLog struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Action    AuditAction       `json:"action"`
	Severity  AuditSeverity     `json:"severity"`
	UserID    string            `json:"user_id"`
	UserName  string            `json:"user_name"`
	UserRole  string            `json:"user_role"`
	RequestID string            `json:"request_id,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditFilter narrows audit log queries
type AuditFilter struct {
	Since      *time.Time
	Until      *time.Time
	Actions    []AuditAction
	Severities []AuditSeverity
	UserID     string
	RequestID  string
	Limit      int
}

// ActivitySummary is the recent-activity digest shown to non-admin users
type ActivitySummary struct {
	UserID        string     `json:"user_id"`
	RecentActions []AuditLog `json:"recent_actions"`
	TotalActions  int        `json:"total_actions"`
}
