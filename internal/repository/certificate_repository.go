package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-hub/clearance-api/internal/models"
)

// CertificateRepository stores issued certificate records.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs the repository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// FindByRequestAndStudent returns the certificate issued for the pair, or
// sql.ErrNoRows when none has been generated yet.
func (r *CertificateRepository) FindByRequestAndStudent(ctx context.Context, requestID, studentID string) (*models.Certificate, error) {
	const query = `SELECT id, request_id, student_id, file_path, serial, created_at
        FROM certificates WHERE request_id = $1 AND student_id = $2 LIMIT 1`
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, requestID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &certificate, nil
}

// Create records an issued certificate. The unique (request_id, student_id)
// pair keeps concurrent generation from issuing twice; the insert is
// conditional and the caller re-reads on conflict.
func (r *CertificateRepository) Create(ctx context.Context, certificate *models.Certificate) (bool, error) {
	if certificate.ID == "" {
		certificate.ID = uuid.NewString()
	}
	if certificate.CreatedAt.IsZero() {
		certificate.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, request_id, student_id, file_path, serial, created_at)
        VALUES (:id, :request_id, :student_id, :file_path, :serial, :created_at)
        ON CONFLICT (request_id, student_id) DO NOTHING`
	result, err := r.db.NamedExecContext(ctx, query, certificate)
	if err != nil {
		return false, fmt.Errorf("create certificate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create certificate result: %w", err)
	}
	return affected > 0, nil
}
