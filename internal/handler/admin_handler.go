package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campus-hub/clearance-api/internal/models"
	"github.com/campus-hub/clearance-api/internal/service"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
	"github.com/campus-hub/clearance-api/pkg/response"
)

// AdminHandler serves administration endpoints: clearance types, schedules,
// roles, the student roster and the request overview.
type AdminHandler struct {
	admin    *service.AdminService
	students *service.StudentService
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(admin *service.AdminService, students *service.StudentService) *AdminHandler {
	return &AdminHandler{admin: admin, students: students}
}

// Profile godoc
// @Summary Administrator profile
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/profile [get]
func (h *AdminHandler) Profile(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.admin.Profile(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ToggleUserStatus godoc
// @Summary Toggle account status
// @Description Flip the activation flag of a user account
// @Tags Administration
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/users/{id}/status [patch]
func (h *AdminHandler) ToggleUserStatus(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	user, err := h.admin.ToggleUserStatus(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, user, nil)
}

// ListTypes godoc
// @Summary List clearance types
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/clearance-types [get]
func (h *AdminHandler) ListTypes(c *gin.Context) {
	types, err := h.admin.ListTypes(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, types, nil)
}

// CreateType godoc
// @Summary Create clearance type
// @Tags Administration
// @Accept json
// @Produce json
// @Param payload body models.CreateClearanceTypeRequest true "Clearance type"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/clearance-types [post]
func (h *AdminHandler) CreateType(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateClearanceTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	clearanceType, err := h.admin.CreateType(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, clearanceType)
}

// SetSchedule godoc
// @Summary Set clearance schedule
// @Description Create or replace the activation window for a clearance type
// @Tags Administration
// @Accept json
// @Produce json
// @Param payload body models.ScheduleRequest true "Schedule"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schedules [put]
func (h *AdminHandler) SetSchedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	schedule, err := h.admin.SetSchedule(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// ToggleSchedule godoc
// @Summary Toggle clearance schedule
// @Tags Administration
// @Accept json
// @Produce json
// @Param id path string true "Clearance type ID"
// @Param payload body models.ToggleScheduleRequest true "Activation flag"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schedules/{id}/toggle [patch]
func (h *AdminHandler) ToggleSchedule(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.ToggleScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	if err := h.admin.ToggleSchedule(c.Request.Context(), claims.UserID, c.Param("id"), req.IsActive); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Schedule godoc
// @Summary Schedule for a clearance type
// @Tags Administration
// @Produce json
// @Param id path string true "Clearance type ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/schedules/{id} [get]
func (h *AdminHandler) Schedule(c *gin.Context) {
	schedule, err := h.admin.Schedule(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedule, nil)
}

// RecentRequests godoc
// @Summary Recent clearance requests
// @Tags Administration
// @Produce json
// @Param limit query int false "Max rows" default(20)
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/requests [get]
func (h *AdminHandler) RecentRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	requests, err := h.admin.RecentRequests(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, requests, nil)
}

// ExportRequests godoc
// @Summary Export clearance requests
// @Description Download the request overview as CSV
// @Tags Administration
// @Produce text/csv
// @Param limit query int false "Max rows" default(100)
// @Success 200 {file} binary
// @Security BearerAuth
// @Router /admin/requests/export [get]
func (h *AdminHandler) ExportRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	payload, err := h.admin.ExportRecentRequests(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := "clearance-requests-" + time.Now().UTC().Format("20060102") + ".csv"
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Data(http.StatusOK, "text/csv", payload)
}

// ListStudents godoc
// @Summary Student roster
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/students [get]
func (h *AdminHandler) ListStudents(c *gin.Context) {
	students, err := h.students.ListOverview(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, students, nil)
}

// ImportStudents godoc
// @Summary Import students
// @Description Import a CSV roster of student accounts
// @Tags Administration
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "CSV file"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/students/import [post]
func (h *AdminHandler) ImportStudents(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "CSV file is required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to open upload"))
		return
	}
	defer file.Close()

	report, err := h.students.Import(c.Request.Context(), claims.UserID, file)
	if err != nil {
		if report != nil {
			response.JSON(c, http.StatusBadRequest, report, nil)
			return
		}
		response.Error(c, err)
		return
	}
	response.Created(c, report)
}

// ListDepartments godoc
// @Summary Department lookup
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/departments [get]
func (h *AdminHandler) ListDepartments(c *gin.Context) {
	departments, err := h.students.ListDepartments(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, departments, nil)
}

// ListBlocks godoc
// @Summary Dormitory block lookup
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/blocks [get]
func (h *AdminHandler) ListBlocks(c *gin.Context) {
	blocks, err := h.students.ListBlocks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, nil)
}

// AssignRole godoc
// @Summary Assign workflow role
// @Tags Administration
// @Accept json
// @Produce json
// @Param payload body models.AssignRoleRequest true "Role binding"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/roles [post]
func (h *AdminHandler) AssignRole(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.AssignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	binding, err := h.admin.AssignRole(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, binding)
}

// RemoveRole godoc
// @Summary Remove workflow roles
// @Tags Administration
// @Produce json
// @Param id path string true "User ID"
// @Success 204 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/roles/{id} [delete]
func (h *AdminHandler) RemoveRole(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.admin.RemoveRole(c.Request.Context(), claims.UserID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListRoles godoc
// @Summary List workflow roles
// @Tags Administration
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /admin/roles [get]
func (h *AdminHandler) ListRoles(c *gin.Context) {
	roles, err := h.admin.ListRoles(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roles, nil)
}
