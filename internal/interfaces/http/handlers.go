package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campusflow/procurement/internal/application/port"
	"github.com/campusflow/procurement/internal/domain/entity"
	"github.com/campusflow/procurement/internal/domain/workflow"
	"github.com/campusflow/procurement/internal/engine"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	engine *engine.Engine
	audit  port.AuditQuerier
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(eng *engine.Engine, audit port.AuditQuerier, logger Logger) *Handlers {
	return &Handlers{
		engine: eng,
		audit:  audit,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

type itemPayload struct {
	ItemName     string  `json:"item_name" binding:"required"`
	Quantity     int     `json:"quantity" binding:"required"`
	ApproxAmount float64 `json:"approx_amount"`
}

type documentPayload struct {
	Name       string `json:"name" binding:"required"`
	SizeBytes  int64  `json:"size_bytes"`
	MimeType   string `json:"mime_type"`
	ContentRef string `json:"content_ref"`
}

type signaturePayload struct {
	Kind string `json:"kind" binding:"required"`
	Data string `json:"data" binding:"required"`
}

type createRequestPayload struct {
	Title         string            `json:"title" binding:"required"`
	Department    string            `json:"department"`
	Course        string            `json:"course"`
	Category      string            `json:"category"`
	OrderType     string            `json:"order_type"`
	Description   string            `json:"description"`
	Justification string            `json:"justification"`
	Items         []itemPayload     `json:"items" binding:"required"`
	Documents     []documentPayload `json:"documents"`
}

// CreateRequest handles POST /api/requests
func (h *Handlers) CreateRequest(c *gin.Context) {
	var payload createRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	items := make([]entity.RequestItem, len(payload.Items))
	for i, item := range payload.Items {
		items[i] = entity.RequestItem{
			ItemName:     item.ItemName,
			Quantity:     item.Quantity,
			ApproxAmount: item.ApproxAmount,
		}
	}

	req, err := h.engine.CreateRequest(c.Request.Context(), actorFrom(c), engine.CreateRequestInput{
		Title:         payload.Title,
		Department:    payload.Department,
		Course:        entity.Course(payload.Course),
		Category:      payload.Category,
		OrderType:     entity.OrderType(payload.OrderType),
		Description:   payload.Description,
		Justification: payload.Justification,
		Items:         items,
		Documents:     toDocuments(payload.Documents),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: req})
}

// GetRequest handles GET /api/requests/:id
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.engine.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: req})
}

// ListRequests handles GET /api/requests
func (h *Handlers) ListRequests(c *gin.Context) {
	filter := port.RequestFilter{
		Department: c.Query("department"),
		Step:       workflow.Step(c.Query("step")),
		CreatedBy:  c.Query("created_by"),
	}
	if since, ok := parseTimeParam(c.Query("since")); ok {
		filter.Since = &since
	}
	if until, ok := parseTimeParam(c.Query("until")); ok {
		filter.Until = &until
	}

	reqs, err := h.engine.ListRequests(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reqs})
}

// ListPending handles GET /api/requests/pending
func (h *Handlers) ListPending(c *gin.Context) {
	actor := actorFrom(c)
	role := actor.Role
	if actor.Role == workflow.RoleAdmin && c.Query("role") != "" {
		role = c.Query("role")
	}

	reqs, err := h.engine.ListPendingForRole(c.Request.Context(), role)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: reqs})
}

// PendingCounts handles GET /api/requests/counts
func (h *Handlers) PendingCounts(c *gin.Context) {
	counts, err := h.engine.PendingCounts(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: counts})
}

type approvePayload struct {
	Comment   string            `json:"comment"`
	Signature *signaturePayload `json:"signature"`
	Documents []documentPayload `json:"documents"`
}

// Approve handles POST /api/requests/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	var payload approvePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	actor := actorFrom(c)
	in := engine.ApproveInput{
		Comment:   payload.Comment,
		Documents: toDocuments(payload.Documents),
	}
	if payload.Signature != nil {
		in.Signature = &entity.Signature{
			Kind:     entity.SignatureKind(payload.Signature.Kind),
			Data:     payload.Signature.Data,
			UserID:   actor.UserID,
			UserName: actor.UserName,
		}
	}

	result, err := h.engine.Approve(c.Request.Context(), c.Param("id"), actor, in)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: transitionResponse(result)})
}

type returnPayload struct {
	Comment   string            `json:"comment" binding:"required"`
	Documents []documentPayload `json:"documents"`
}

// Return handles POST /api/requests/:id/return
func (h *Handlers) Return(c *gin.Context) {
	var payload returnPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	result, err := h.engine.Return(c.Request.Context(), c.Param("id"), actorFrom(c), engine.ReturnInput{
		Comment:   payload.Comment,
		Documents: toDocuments(payload.Documents),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: transitionResponse(result)})
}

type commentPayload struct {
	Text string `json:"text" binding:"required"`
}

// AddComment handles POST /api/requests/:id/comments
func (h *Handlers) AddComment(c *gin.Context) {
	var payload commentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	result, err := h.engine.AddComment(c.Request.Context(), c.Param("id"), actorFrom(c), payload.Text)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: transitionResponse(result)})
}

type attachPayload struct {
	Documents []documentPayload `json:"documents" binding:"required"`
}

// AttachDocuments handles POST /api/requests/:id/documents
func (h *Handlers) AttachDocuments(c *gin.Context) {
	var payload attachPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	result, err := h.engine.AttachDocuments(c.Request.Context(), c.Param("id"), actorFrom(c), toDocuments(payload.Documents))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: transitionResponse(result)})
}

// DeleteRequest handles DELETE /api/requests/:id
func (h *Handlers) DeleteRequest(c *gin.Context) {
	if err := h.engine.DeleteRequest(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// SaveSignature handles POST /api/signatures
func (h *Handlers) SaveSignature(c *gin.Context) {
	var payload signaturePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
		return
	}

	sig, err := h.engine.SaveSignature(c.Request.Context(), actorFrom(c), entity.SignatureKind(payload.Kind), payload.Data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: sig})
}

// ListSignatures handles GET /api/signatures
func (h *Handlers) ListSignatures(c *gin.Context) {
	sigs, err := h.engine.UserSignatures(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: sigs})
}

// ListAuditLogs handles GET /api/audit-logs
func (h *Handlers) ListAuditLogs(c *gin.Context) {
	filter := entity.AuditFilter{
		UserID:    c.Query("user_id"),
		RequestID: c.Query("request_id"),
	}
	if since, ok := parseTimeParam(c.Query("since")); ok {
		filter.Since = &since
	}
	if until, ok := parseTimeParam(c.Query("until")); ok {
		filter.Until = &until
	}
	if limit, err := strconv.Atoi(c.Query("limit")); err == nil && limit > 0 {
		filter.Limit = limit
	}
	for _, a := range c.QueryArray("action") {
		filter.Actions = append(filter.Actions, entity.AuditAction(a))
	}
	for _, s := range c.QueryArray("severity") {
		filter.Severities = append(filter.Severities, entity.AuditSeverity(s))
	}

	logs, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: logs})
}

// ActivitySummary handles GET /api/audit-logs/summary
func (h *Handlers) ActivitySummary(c *gin.Context) {
	summary, err := h.audit.Summary(c.Request.Context(), actorFrom(c).UserID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// writeError maps domain errors to HTTP status codes
func (h *Handlers) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, workflow.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, workflow.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, workflow.ErrInvalidState), errors.Is(err, workflow.ErrConflict):
		status = http.StatusConflict
	default:
		h.logger.Errorw("Request failed", "error", err)
	}
	c.JSON(status, Response{Success: false, Error: err.Error()})
}

func transitionResponse(result *engine.TransitionResult) gin.H {
	return gin.H{
		"new_step":       result.NewStep,
		"audit_degraded": result.AuditDegraded,
	}
}

func toDocuments(payloads []documentPayload) []entity.RequestDocument {
	if len(payloads) == 0 {
		return nil
	}
	docs := make([]entity.RequestDocument, len(payloads))
	for i, p := range payloads {
		docs[i] = entity.RequestDocument{
			Name:       p.Name,
			SizeBytes:  p.SizeBytes,
			MimeType:   p.MimeType,
			ContentRef: p.ContentRef,
		}
	}
	return docs
}

func parseTimeParam(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
