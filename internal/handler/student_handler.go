package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-hub/clearance-api/internal/models"
	"github.com/campus-hub/clearance-api/internal/service"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
	"github.com/campus-hub/clearance-api/pkg/response"
)

// StudentHandler serves the student-facing clearance endpoints.
type StudentHandler struct {
	students *service.StudentService
	requests *service.RequestService
}

// NewStudentHandler creates a new handler.
func NewStudentHandler(students *service.StudentService, requests *service.RequestService) *StudentHandler {
	return &StudentHandler{students: students, requests: requests}
}

// Profile godoc
// @Summary Student profile
// @Description Return the authenticated student's profile
// @Tags Students
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /students/me [get]
func (h *StudentHandler) Profile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	student, err := h.students.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, student, nil)
}

// ListTypes godoc
// @Summary List clearance types
// @Description Return the clearance types a student can request
// @Tags Clearance
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /clearance/types [get]
func (h *StudentHandler) ListTypes(c *gin.Context) {
	types, err := h.requests.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// Submit godoc
// @Summary Submit clearance request
// @Description Open a clearance request and seed the first-phase approvals
// @Tags Clearance
// @Accept json
// @Produce json
// @Param payload body models.SubmitRequest true "Submission payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /clearance/requests [post]
func (h *StudentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission payload"))
		return
	}

	request, err := h.requests.Submit(c.Request.Context(), claims.UserID, req.ClearanceTypeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, request)
}

// Status godoc
// @Summary Clearance status
// @Description Return the student's requests with per-role breakdown
// @Tags Clearance
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /clearance/requests/status [get]
func (h *StudentHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	statuses, err := h.requests.StatusForStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, statuses, nil)
}
