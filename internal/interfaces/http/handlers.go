package http

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crmkit/workflow-engine/internal/application/port"
	"github.com/crmkit/workflow-engine/internal/application/service"
	"github.com/crmkit/workflow-engine/internal/domain/definition"
)

// Handlers contains all HTTP request handlers
type Handlers struct {
	definitionService service.DefinitionService
	workflowService   service.WorkflowService
	approvalService   service.ApprovalService
	historyService    service.HistoryService
	logger            Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(
	definitionService service.DefinitionService,
	workflowService service.WorkflowService,
	approvalService service.ApprovalService,
	historyService service.HistoryService,
	logger Logger,
) *Handlers {
	return &Handlers{
		definitionService: definitionService,
		workflowService:   workflowService,
		approvalService:   approvalService,
		historyService:    historyService,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Details interface{} `json:"details,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// CreateDefinitionRequest is the body of POST /definitions
type CreateDefinitionRequest struct {
	CaseType string                      `json:"case_type" binding:"required"`
	States   []definition.State          `json:"states" binding:"required"`
	Rules    []definition.TransitionRule `json:"rules"`
}

// CreateInstanceRequest is the body of POST /instances
type CreateInstanceRequest struct {
	CaseType string             `json:"case_type" binding:"required"`
	EntityID string             `json:"entity_id" binding:"required"`
	Steps    []service.StepSpec `json:"steps" binding:"required"`
}

// TransitionRequest is the body of POST /instances/:id/transitions
type TransitionRequest struct {
	ToState string         `json:"to_state" binding:"required"`
	ActorID string         `json:"actor_id" binding:"required"`
	Fields  map[string]any `json:"fields"`
}

// VoteRequest is the body of POST /steps/:stepId/votes
type VoteRequest struct {
	ApproverID string `json:"approver_id" binding:"required"`
	Decision   string `json:"decision" binding:"required"`
	Comment    string `json:"comment"`
}

// CompleteStepRequest is the body of POST /steps/:stepId/complete
type CompleteStepRequest struct {
	Success bool `json:"success"`
}

// CancelRequest is the body of POST /instances/:id/cancel
type CancelRequest struct {
	Reason string `json:"reason"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// CreateDefinition handles POST /api/tenants/:tenantId/definitions
func (h *Handlers) CreateDefinition(c *gin.Context) {
	var req CreateDefinitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	def, err := h.definitionService.CreateDraft(c.Request.Context(), c.Param("tenantId"), req.CaseType, req.States, req.Rules)
	if err != nil {
		h.serviceError(c, err, "failed to create definition")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: def})
}

// PublishDefinition handles POST /api/tenants/:tenantId/definitions/:id/publish
func (h *Handlers) PublishDefinition(c *gin.Context) {
	def, err := h.definitionService.Publish(c.Request.Context(), c.Param("tenantId"), c.Param("id"))
	if err != nil {
		h.serviceError(c, err, "failed to publish definition")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// GetActiveDefinition handles GET /api/tenants/:tenantId/definitions/active
func (h *Handlers) GetActiveDefinition(c *gin.Context) {
	caseType := c.Query("case_type")
	if caseType == "" {
		h.badRequest(c, "case_type query parameter is required")
		return
	}

	def, err := h.definitionService.GetActive(c.Request.Context(), c.Param("tenantId"), caseType)
	if err != nil {
		h.serviceError(c, err, "failed to get active definition")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: def})
}

// ListDefinitionVersions handles GET /api/tenants/:tenantId/definitions
func (h *Handlers) ListDefinitionVersions(c *gin.Context) {
	caseType := c.Query("case_type")
	if caseType == "" {
		h.badRequest(c, "case_type query parameter is required")
		return
	}

	versions, err := h.definitionService.GetVersionHistory(c.Request.Context(), c.Param("tenantId"), caseType)
	if err != nil {
		h.serviceError(c, err, "failed to list definition versions")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: versions})
}

// CreateInstance handles POST /api/tenants/:tenantId/instances
func (h *Handlers) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	instance, err := h.workflowService.CreateInstance(c.Request.Context(), c.Param("tenantId"), req.CaseType, req.EntityID, req.Steps)
	if err != nil {
		h.serviceError(c, err, "failed to create instance")
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: instance})
}

// GetInstance handles GET /api/tenants/:tenantId/instances/:id
func (h *Handlers) GetInstance(c *gin.Context) {
	status, err := h.workflowService.GetStatus(c.Request.Context(), c.Param("tenantId"), c.Param("id"))
	if err != nil {
		h.serviceError(c, err, "failed to get instance")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: status})
}

// StartInstance handles POST /api/tenants/:tenantId/instances/:id/start
func (h *Handlers) StartInstance(c *gin.Context) {
	if err := h.workflowService.Start(c.Request.Context(), c.Param("tenantId"), c.Param("id")); err != nil {
		h.serviceError(c, err, "failed to start instance")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// RequestTransition handles POST /api/tenants/:tenantId/instances/:id/transitions
func (h *Handlers) RequestTransition(c *gin.Context) {
	var req TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	decision, err := h.workflowService.RequestTransition(
		c.Request.Context(), c.Param("tenantId"), c.Param("id"),
		req.ToState, req.ActorID, req.Fields,
	)
	if err != nil {
		h.serviceError(c, err, "failed to evaluate transition")
		return
	}

	// A denied transition is a successful evaluation; the decision carries
	// the denial reasons.
	c.JSON(http.StatusOK, Response{Success: true, Data: decision})
}

// AdvanceInstance handles POST /api/tenants/:tenantId/instances/:id/advance
func (h *Handlers) AdvanceInstance(c *gin.Context) {
	if err := h.workflowService.Advance(c.Request.Context(), c.Param("tenantId"), c.Param("id")); err != nil {
		h.serviceError(c, err, "failed to advance instance")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// CancelInstance handles POST /api/tenants/:tenantId/instances/:id/cancel
func (h *Handlers) CancelInstance(c *gin.Context) {
	// Body is optional; cancelling without a reason is allowed.
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body")
		return
	}

	if err := h.workflowService.Cancel(c.Request.Context(), c.Param("tenantId"), c.Param("id"), req.Reason); err != nil {
		h.serviceError(c, err, "failed to cancel instance")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetTransitionHistory handles GET /api/tenants/:tenantId/instances/:id/history
func (h *Handlers) GetTransitionHistory(c *gin.Context) {
	entries, err := h.historyService.ListTransitions(c.Request.Context(), c.Param("tenantId"), c.Param("id"))
	if err != nil {
		h.serviceError(c, err, "failed to get transition history")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: entries})
}

// Vote handles POST /api/tenants/:tenantId/steps/:stepId/votes
func (h *Handlers) Vote(c *gin.Context) {
	var req VoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	outcome, err := h.approvalService.Vote(
		c.Request.Context(), c.Param("tenantId"), c.Param("stepId"),
		req.ApproverID, req.Decision, req.Comment,
	)
	if err != nil {
		h.serviceError(c, err, "failed to record vote")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: outcome})
}

// CompleteStep handles POST /api/tenants/:tenantId/steps/:stepId/complete
func (h *Handlers) CompleteStep(c *gin.Context) {
	var req CompleteStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body")
		return
	}

	if err := h.workflowService.CompleteStep(c.Request.Context(), c.Param("tenantId"), c.Param("stepId"), req.Success); err != nil {
		h.serviceError(c, err, "failed to complete step")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// ResetStep handles POST /api/tenants/:tenantId/steps/:stepId/reset
func (h *Handlers) ResetStep(c *gin.Context) {
	if err := h.workflowService.ResetStep(c.Request.Context(), c.Param("tenantId"), c.Param("stepId")); err != nil {
		h.serviceError(c, err, "failed to reset step")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true})
}

// GetApprovalLedger handles GET /api/tenants/:tenantId/steps/:stepId/approvals
func (h *Handlers) GetApprovalLedger(c *gin.Context) {
	records, err := h.approvalService.Ledger(c.Request.Context(), c.Param("tenantId"), c.Param("stepId"))
	if err != nil {
		h.serviceError(c, err, "failed to get approval ledger")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: records})
}

// ListPendingApprovals handles GET /api/tenants/:tenantId/approvers/:approverId/pending
func (h *Handlers) ListPendingApprovals(c *gin.Context) {
	pending, err := h.approvalService.ListPending(c.Request.Context(), c.Param("tenantId"), c.Param("approverId"))
	if err != nil {
		h.serviceError(c, err, "failed to list pending approvals")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: pending})
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: msg})
}

// serviceError maps application errors to HTTP status codes
func (h *Handlers) serviceError(c *gin.Context, err error, fallback string) {
	var invalid *service.InvalidDefinitionError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "definition is invalid",
			Details: invalid.Violations,
		})
		return
	}

	switch {
	case errors.Is(err, port.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "not found"})
	case errors.Is(err, port.ErrDuplicateVote),
		errors.Is(err, port.ErrVersionConflict),
		errors.Is(err, definition.ErrAlreadyPublished),
		errors.Is(err, service.ErrAlreadyStarted),
		errors.Is(err, service.ErrInstanceTerminal),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrStepNotInProgress),
		errors.Is(err, service.ErrStepsPending),
		errors.Is(err, service.ErrStepNotResettable),
		errors.Is(err, service.ErrStepTypeMismatch):
		c.JSON(http.StatusConflict, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrInvalidDecision):
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: err.Error()})
	case errors.Is(err, service.ErrApproverNotAssigned):
		c.JSON(http.StatusForbidden, Response{Success: false, Error: err.Error()})
	default:
		h.logger.Error(fallback, "error", err)
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: fallback})
	}
}
