package claim

import (
	"time"

	"github.com/google/uuid"
)

// Status is a claim's position in the reimbursement lifecycle.
type Status string

const (
	StatusDraft        Status = "DRAFT"
	StatusValidated    Status = "VALIDATED"
	StatusSubmitted    Status = "SUBMITTED"
	StatusAcknowledged Status = "ACKNOWLEDGED"
	StatusPending      Status = "PENDING"
	StatusPaid         Status = "PAID"
	StatusPartialPaid  Status = "PARTIAL_PAID"
	StatusDenied       Status = "DENIED"
	StatusAppealed     Status = "APPEALED"
	StatusFinalDenied  Status = "FINAL_DENIED"
	StatusVoid         Status = "VOID"
)

// transitions is the full lifecycle graph. PAID, FINAL_DENIED and VOID are
// terminal. A denial leaves member services attached and their billing status
// untouched; writing them off is a separate workflow.
var transitions = map[Status][]Status{
	StatusDraft:        {StatusValidated, StatusSubmitted, StatusVoid},
	StatusValidated:    {StatusSubmitted, StatusDraft, StatusVoid},
	StatusSubmitted:    {StatusAcknowledged, StatusPending, StatusPaid, StatusPartialPaid, StatusDenied},
	StatusAcknowledged: {StatusPending, StatusPaid, StatusPartialPaid, StatusDenied},
	StatusPending:      {StatusPaid, StatusPartialPaid, StatusDenied},
	StatusPaid:         {},
	StatusPartialPaid:  {StatusPaid, StatusAppealed, StatusDenied},
	StatusDenied:       {StatusAppealed, StatusFinalDenied},
	StatusAppealed:     {StatusPaid, StatusPartialPaid, StatusFinalDenied},
	StatusFinalDenied:  {},
	StatusVoid:         {},
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Submission eligibility is narrower than the transition table: only claims
// that have never been dispatched may go out.
func Submittable(status Status) bool {
	return status == StatusDraft || status == StatusValidated
}

// Claim kinds relative to the payer's books.
const (
	TypeOriginal   = "ORIGINAL"
	TypeAdjustment = "ADJUSTMENT"
)

// Claim is a billable bundle of services submitted to one payer for one
// client. Date range and total are computed from the member services at
// conversion time and frozen on the row.
type Claim struct {
	ID               uuid.UUID  `db:"id" json:"id"`
	ClientID         uuid.UUID  `db:"client_id" json:"client_id"`
	PayerID          uuid.UUID  `db:"payer_id" json:"payer_id"`
	Type             string     `db:"claim_kind" json:"type"`
	ClaimType        string     `db:"claim_type" json:"claim_type"`
	BillingFormat    string     `db:"billing_format" json:"billing_format"`
	Status           Status     `db:"status" json:"status"`
	ServiceStartDate time.Time  `db:"service_start_date" json:"service_start_date"`
	ServiceEndDate   time.Time  `db:"service_end_date" json:"service_end_date"`
	TotalAmount      float64    `db:"total_amount" json:"total_amount"`
	SubmissionMethod *string    `db:"submission_method" json:"submission_method,omitempty"`
	SubmissionDate   *time.Time `db:"submission_date" json:"submission_date,omitempty"`
	TrackingID       *string    `db:"tracking_id" json:"tracking_id,omitempty"`
	ExternalClaimID  *string    `db:"external_claim_id" json:"external_claim_id,omitempty"`
	Notes            *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusChange is one append-only audit row for a claim transition.
type StatusChange struct {
	ID         uuid.UUID `db:"id" json:"id"`
	ClaimID    uuid.UUID `db:"claim_id" json:"claim_id"`
	FromStatus Status    `db:"from_status" json:"from_status"`
	ToStatus   Status    `db:"to_status" json:"to_status"`
	Note       string    `db:"note" json:"note"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
