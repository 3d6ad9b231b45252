package submission

import (
	"time"

	"github.com/google/uuid"
)

// Attempt is one append-only audit row for a dispatch (or a validation
// failure that stopped one). Attempts are never updated or deleted.
type Attempt struct {
	ID              uuid.UUID `db:"id" json:"id"`
	ClaimID         uuid.UUID `db:"claim_id" json:"claim_id"`
	Method          string    `db:"method" json:"method"`
	Format          string    `db:"format" json:"format"`
	Success         bool      `db:"success" json:"success"`
	TrackingID      *string   `db:"tracking_id" json:"tracking_id,omitempty"`
	ExternalClaimID *string   `db:"external_claim_id" json:"external_claim_id,omitempty"`
	Errors          []string  `db:"errors" json:"errors,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// ValidationResult reports submission-readiness. An invalid claim is an
// expected outcome and is returned as data, never as an error.
type ValidationResult struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors,omitempty"`
}

func (r *ValidationResult) addError(msg string) {
	r.IsValid = false
	r.Errors = append(r.Errors, msg)
}

// Result is the outcome of submitting one claim.
type Result struct {
	ClaimID         uuid.UUID         `json:"claim_id"`
	Success         bool              `json:"success"`
	Validation      *ValidationResult `json:"validation,omitempty"`
	TrackingID      *string           `json:"tracking_id,omitempty"`
	ExternalClaimID *string           `json:"external_claim_id,omitempty"`
	Instructions    *string           `json:"instructions,omitempty"`
}

// BatchResult summarizes a multi-claim submission run.
type BatchResult struct {
	TotalProcessed int         `json:"total_processed"`
	SuccessCount   int         `json:"success_count"`
	ErrorCount     int         `json:"error_count"`
	Errors         []string    `json:"errors,omitempty"`
	ClaimIDs       []uuid.UUID `json:"claim_ids,omitempty"`
}
