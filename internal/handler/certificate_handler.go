package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campus-hub/clearance-api/internal/service"
	appErrors "github.com/campus-hub/clearance-api/pkg/errors"
	"github.com/campus-hub/clearance-api/pkg/response"
)

// CertificateHandler serves clearance certificate downloads.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler creates a new handler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Download godoc
// @Summary Download certificate
// @Description Download the clearance certificate for an approved request
// @Tags Certificates
// @Produce application/pdf
// @Param id path string true "Request ID"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Security BearerAuth
// @Router /clearance/requests/{id}/certificate [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	certificate, document, err := h.certificates.Download(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", certificate.FilePath))
	c.Data(http.StatusOK, "application/pdf", document)
}

// SignedLink godoc
// @Summary Signed download link
// @Description Issue a time-limited token for fetching the certificate without auth headers
// @Tags Certificates
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Security BearerAuth
// @Router /clearance/requests/{id}/certificate/link [get]
func (h *CertificateHandler) SignedLink(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, expiresAt, err := h.certificates.SignedLink(c.Request.Context(), claims.UserID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{
		"url":        "/api/v1/certificates/download?token=" + token,
		"expires_at": expiresAt,
	}, nil)
}

// ServeSigned godoc
// @Summary Fetch via signed link
// @Description Resolve a signed token to the stored certificate document
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /certificates/download [get]
func (h *CertificateHandler) ServeSigned(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}

	document, err := h.certificates.ServeSigned(token)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=\"clearance-certificate.pdf\"")
	c.Data(http.StatusOK, "application/pdf", document)
}
