package authorization

import (
	"time"

	"github.com/google/uuid"
)

// Status is an authorization's lifecycle state.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusApproved  Status = "APPROVED"
	StatusActive    Status = "ACTIVE"
	StatusExpiring  Status = "EXPIRING"
	StatusExpired   Status = "EXPIRED"
	StatusDenied    Status = "DENIED"
	StatusCancelled Status = "CANCELLED"
)

// transitions is the allowed-next-state table. CANCELLED → REQUESTED is valid
// but currently has no caller.
var transitions = map[Status][]Status{
	StatusRequested: {StatusApproved, StatusDenied, StatusCancelled},
	StatusApproved:  {StatusActive, StatusCancelled},
	StatusActive:    {StatusExpiring, StatusExpired, StatusCancelled},
	StatusExpiring:  {StatusExpired, StatusActive, StatusCancelled},
	StatusExpired:   {StatusActive, StatusCancelled},
	StatusDenied:    {StatusApproved, StatusCancelled},
	StatusCancelled: {StatusRequested},
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

// Authorization is a payer-granted allowance of service units for a client,
// within a date range, for specific service types. UsedUnits is its owned
// utilization counter: 0 <= UsedUnits <= AuthorizedUnits after every
// committed mutation, and all mutation goes through TrackUtilization.
type Authorization struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	ClientID        uuid.UUID  `db:"client_id" json:"client_id"`
	ProgramID       string     `db:"program_id" json:"program_id"`
	Number          string     `db:"authorization_number" json:"authorization_number"`
	Status          Status     `db:"status" json:"status"`
	StartDate       time.Time  `db:"start_date" json:"start_date"`
	EndDate         *time.Time `db:"end_date" json:"end_date,omitempty"`
	AuthorizedUnits int        `db:"authorized_units" json:"authorized_units"`
	UsedUnits       int        `db:"used_units" json:"used_units"`
	ServiceTypeIDs  []string   `db:"service_type_ids" json:"service_type_ids"`
	Notes           *string    `db:"notes" json:"notes,omitempty"`
	IssuedBy        *string    `db:"issued_by" json:"issued_by,omitempty"`
	IssuedAt        *time.Time `db:"issued_at" json:"issued_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updated_at"`
}

// RemainingUnits is the headroom left under the authorized limit.
func (a *Authorization) RemainingUnits() int {
	return a.AuthorizedUnits - a.UsedUnits
}

// InDateRange reports whether d falls inside the validity range. An absent
// end date means open-ended.
func (a *Authorization) InDateRange(d time.Time) bool {
	if d.Before(a.StartDate) {
		return false
	}
	return a.EndDate == nil || !d.After(*a.EndDate)
}

// Covers reports whether the authorization covers the given service type.
func (a *Authorization) Covers(serviceTypeID string) bool {
	for _, st := range a.ServiceTypeIDs {
		if st == serviceTypeID {
			return true
		}
	}
	return false
}

// expiringThresholdPct is the utilization percentage at which an ACTIVE
// authorization is flagged EXPIRING.
const expiringThresholdPct = 80

// atExpiringThreshold reports whether utilization has reached the warning
// threshold.
func (a *Authorization) atExpiringThreshold() bool {
	if a.AuthorizedUnits <= 0 {
		return false
	}
	return a.UsedUnits*100 >= a.AuthorizedUnits*expiringThresholdPct
}
