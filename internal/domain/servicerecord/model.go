package servicerecord

import (
	"time"

	"github.com/google/uuid"
)

// DocumentationStatus tracks whether a service's supporting paperwork is
// complete enough to bill.
type DocumentationStatus string

const (
	DocIncomplete    DocumentationStatus = "INCOMPLETE"
	DocPendingReview DocumentationStatus = "PENDING_REVIEW"
	DocComplete      DocumentationStatus = "COMPLETE"
)

// BillingStatus tracks a service's progress toward reimbursement.
type BillingStatus string

const (
	BillingUnbilled        BillingStatus = "UNBILLED"
	BillingReadyForBilling BillingStatus = "READY_FOR_BILLING"
	BillingInClaim         BillingStatus = "IN_CLAIM"
	BillingBilled          BillingStatus = "BILLED"
	BillingVoid            BillingStatus = "VOID"
)

// ServiceRecord is one rendered service: a visit, shift, or session delivered
// to a client, measured in units and dollars.
type ServiceRecord struct {
	ID              uuid.UUID           `db:"id" json:"id"`
	ClientID        uuid.UUID           `db:"client_id" json:"client_id"`
	ServiceTypeID   string              `db:"service_type_id" json:"service_type_id"`
	ServiceDate     time.Time           `db:"service_date" json:"service_date"`
	Units           int                 `db:"units" json:"units"`
	Amount          float64             `db:"amount" json:"amount"`
	DocStatus       DocumentationStatus `db:"documentation_status" json:"documentation_status"`
	BillingStatus   BillingStatus       `db:"billing_status" json:"billing_status"`
	AuthorizationID *uuid.UUID          `db:"authorization_id" json:"authorization_id,omitempty"`
	ClaimID         *uuid.UUID          `db:"claim_id" json:"claim_id,omitempty"`
	Notes           *string             `db:"notes" json:"notes,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// Billable reports whether the record can enter a claim: documentation done
// and explicitly marked ready.
func (s *ServiceRecord) Billable() bool {
	return s.BillingStatus == BillingReadyForBilling && s.DocStatus == DocComplete
}

var validDocStatuses = map[DocumentationStatus]bool{
	DocIncomplete: true, DocPendingReview: true, DocComplete: true,
}

var validBillingStatuses = map[BillingStatus]bool{
	BillingUnbilled: true, BillingReadyForBilling: true, BillingInClaim: true,
	BillingBilled: true, BillingVoid: true,
}
