package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderCertificate(t *testing.T) {
	renderer := NewCertificateRenderer()

	document, err := renderer.Render(CertificateData{
		Institution:   "Addis Ababa Science and Technology University",
		StudentName:   "Abel Tesfaye",
		IDNo:          "ETS0001/14",
		Department:    "Software Engineering",
		ClearanceType: "graduation",
		Serial:        "CLR-20260830-abcd1234",
		ApprovedRoles: []string{"department_head", "librarian", "registrar"},
		IssuedAt:      time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotEmpty(t, document)
	assert.Equal(t, "%PDF", string(document[:4]))
}

func TestRenderCertificateRequiresCoreFields(t *testing.T) {
	renderer := NewCertificateRenderer()

	_, err := renderer.Render(CertificateData{Institution: "AASTU"})
	require.Error(t, err)
}

func TestRoleTitle(t *testing.T) {
	assert.Equal(t, "Department Head", roleTitle("department_head"))
	assert.Equal(t, "Registrar", roleTitle("registrar"))
}
