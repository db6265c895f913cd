package export

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// CertificateData carries the fields printed on a clearance certificate.
type CertificateData struct {
	Institution   string
	StudentName   string
	IDNo          string
	Department    string
	ClearanceType string
	Serial        string
	ApprovedRoles []string
	IssuedAt      time.Time
}

// CertificateRenderer produces A4 clearance certificates.
type CertificateRenderer struct{}

// NewCertificateRenderer constructs a certificate renderer.
func NewCertificateRenderer() *CertificateRenderer {
	return &CertificateRenderer{}
}

// Render creates the PDF document for an approved clearance request.
func (r *CertificateRenderer) Render(data CertificateData) ([]byte, error) {
	if data.StudentName == "" || data.ClearanceType == "" {
		return nil, fmt.Errorf("certificate requires student name and clearance type")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(18, 20, 18)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 20)
	pdf.SetTextColor(0, 48, 135)
	pdf.MultiCell(0, 10, data.Institution, "", "C", false)
	pdf.Ln(2)

	pdf.SetFont("Arial", "BU", 16)
	pdf.CellFormat(0, 10, "Clearance Certificate", "", 1, "C", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 12)
	pdf.SetTextColor(0, 0, 0)
	writeField(pdf, "Student Name", data.StudentName)
	writeField(pdf, "ID Number", orNA(data.IDNo))
	writeField(pdf, "Department", orNA(data.Department))
	writeField(pdf, "Clearance Type", data.ClearanceType)
	writeField(pdf, "Certificate No", orNA(data.Serial))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 13)
	pdf.CellFormat(0, 8, "Approved By:", "", 1, "", false, 0, "")
	pdf.SetFont("Arial", "", 11)
	for _, role := range data.ApprovedRoles {
		pdf.CellFormat(8, 6, "", "", 0, "", false, 0, "")
		pdf.CellFormat(0, 6, "- "+roleTitle(role), "", 1, "", false, 0, "")
	}
	pdf.Ln(8)

	issued := data.IssuedAt
	if issued.IsZero() {
		issued = time.Now().UTC()
	}
	writeField(pdf, "Date Issued", issued.Format("January 2, 2006"))
	pdf.Ln(6)
	pdf.CellFormat(0, 7, "Authorized Signature:", "", 1, "", false, 0, "")
	y := pdf.GetY() + 4
	pdf.Line(30, y, 100, y)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}

func writeField(pdf *gofpdf.Fpdf, label, value string) {
	pdf.CellFormat(45, 7, label+":", "", 0, "", false, 0, "")
	pdf.CellFormat(0, 7, value, "", 1, "", false, 0, "")
}

func orNA(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

func roleTitle(role string) string {
	words := strings.Split(strings.ReplaceAll(role, "_", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
