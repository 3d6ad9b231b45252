package payer

import (
	"time"

	"github.com/google/uuid"
)

// Claim types and billing formats a payer can require.
const (
	ClaimTypeProfessional  = "PROFESSIONAL"
	ClaimTypeInstitutional = "INSTITUTIONAL"

	FormatX12837P = "X12-837P"
	FormatCMS1500 = "CMS-1500"
	FormatUB04    = "UB-04"
	FormatCustom  = "CUSTOM"
)

// Submission methods a payer supports.
const (
	MethodElectronic    = "ELECTRONIC"
	MethodClearinghouse = "CLEARINGHOUSE"
	MethodPortal        = "PORTAL"
	MethodDirect        = "DIRECT"
	MethodPaper         = "PAPER"
)

// BillingRequirements captures how a payer wants claims prepared. Defaults
// apply when the payer has not declared otherwise: professional claim type on
// paper CMS-1500.
type BillingRequirements struct {
	DefaultClaimType   string `db:"default_claim_type" json:"default_claim_type"`
	BillingFormat      string `db:"billing_format" json:"billing_format"`
	AcceptsElectronic  bool   `db:"accepts_electronic" json:"accepts_electronic"`
	FilingDeadlineDays int    `db:"filing_deadline_days" json:"filing_deadline_days"`
}

// Defaulted returns the requirements with unset fields replaced by defaults.
func (b BillingRequirements) Defaulted() BillingRequirements {
	if b.DefaultClaimType == "" {
		b.DefaultClaimType = ClaimTypeProfessional
	}
	if b.BillingFormat == "" {
		b.BillingFormat = FormatCMS1500
	}
	return b
}

// Payer is an insurer or state program that reimburses claims.
type Payer struct {
	ID               uuid.UUID           `db:"id" json:"id"`
	Name             string              `db:"name" json:"name"`
	PayerIdentifier  string              `db:"payer_identifier" json:"payer_identifier"`
	SubmissionMethod string              `db:"submission_method" json:"submission_method"`
	Requirements     BillingRequirements `json:"billing_requirements"`
	Active           bool                `db:"active" json:"active"`
	Notes            *string             `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time           `db:"updated_at" json:"updated_at"`
}
