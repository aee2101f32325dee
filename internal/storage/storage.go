// Package storage defines the persistence interface for complaints, proofs,
// verification results, and status checks.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/kakunin/internal/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Storage defines durable persistence operations. Write failures during a
// verification run are treated as non-fatal by the caller; the result is still
// returned with a warning attached.
type Storage interface {
	// Complaint operations
	SaveComplaint(ctx context.Context, c *models.ComplaintRecord) error
	GetComplaint(ctx context.Context, id string) (*models.ComplaintRecord, error)

	// Proof operations
	SaveProof(ctx context.Context, p *models.ProofRecord) error
	GetProof(ctx context.Context, id string) (*models.ProofRecord, error)
	ListProofsByComplaint(ctx context.Context, complaintID string) ([]*models.ProofRecord, error)

	// Verification results
	SaveResult(ctx context.Context, r *models.VerificationResult) error
	GetResult(ctx context.Context, id string) (*models.VerificationResult, error)
	ListPendingReview(ctx context.Context, limit int) ([]*models.VerificationResult, error)
	FinalizeReview(ctx context.Context, resultID, decision string, reviewedAt time.Time) error

	// Status checks
	SaveStatusCheck(ctx context.Context, s *models.StatusCheck) error
	ListStatusChecks(ctx context.Context, limit int) ([]*models.StatusCheck, error)

	Close() error
}
