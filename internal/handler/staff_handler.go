package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-hub/clearance-api/internal/models"
	"github.com/campus-hub/clearance-api/internal/service"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
	"github.com/campus-hub/clearance-api/pkg/response"
)

// StaffHandler serves the approver-facing workflow endpoints.
type StaffHandler struct {
	workflow *service.WorkflowService
}

// NewStaffHandler creates a new handler.
func NewStaffHandler(workflow *service.WorkflowService) *StaffHandler {
	return &StaffHandler{workflow: workflow}
}

// Profile godoc
// @Summary Approver profile
// @Description Return the approver's account with their workflow role binding
// @Tags Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/profile [get]
func (h *StaffHandler) Profile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	profile, err := h.workflow.ApproverProfile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, profile, nil)
}

// Queue godoc
// @Summary Approval queue
// @Description List requests assigned to the approver, filtered by decision state
// @Tags Workflow
// @Produce json
// @Param status query string false "Decision state" default(pending)
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/requests [get]
func (h *StaffHandler) Queue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status := models.ApprovalStatus(c.DefaultQuery("status", string(models.StatusPending)))
	if status != models.StatusPending && !status.Decided() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "status must be pending, approved or rejected"))
		return
	}

	items, err := h.workflow.Queue(c.Request.Context(), claims.UserID, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Decide godoc
// @Summary Record a decision
// @Description Approve or reject an assigned clearance request
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Param payload body models.DecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/requests/{id}/decision [post]
func (h *StaffHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	status, err := h.workflow.RecordDecision(c.Request.Context(), claims.UserID, c.Param("id"), models.ApprovalStatus(req.Status), req.Comment)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// RequestStatus godoc
// @Summary Request status
// @Description Return the derived aggregate status of a request
// @Tags Workflow
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /staff/requests/{id} [get]
func (h *StaffHandler) RequestStatus(c *gin.Context) {
	status, err := h.workflow.RequestStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
