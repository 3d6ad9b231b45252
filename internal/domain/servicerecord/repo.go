package servicerecord

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, s *ServiceRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceRecord, error)
	// GetByIDs loads every requested record; callers detect missing ids by
	// comparing lengths.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*ServiceRecord, error)
	Update(ctx context.Context, s *ServiceRecord) error
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*ServiceRecord, int, error)
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*ServiceRecord, error)

	// AttachToClaim flips a ready-for-billing service to IN_CLAIM and records
	// the owning claim. The status guard in the statement keeps a service from
	// joining two claims.
	AttachToClaim(ctx context.Context, serviceID, claimID uuid.UUID) error
	// SetBillingStatus updates billing status without touching claim linkage.
	SetBillingStatus(ctx context.Context, serviceID uuid.UUID, status BillingStatus) error
	// DetachFromClaim releases every IN_CLAIM member of the claim back to
	// READY_FOR_BILLING and clears the claim linkage. Returns the number of
	// released rows.
	DetachFromClaim(ctx context.Context, claimID uuid.UUID) (int, error)
	// RevertUnderDocumented returns to UNBILLED every unbilled or
	// ready-for-billing service on the authorization whose documentation is
	// not COMPLETE, appending note. Returns the number of reverted rows.
	RevertUnderDocumented(ctx context.Context, authorizationID uuid.UUID, note string) (int, error)
	// CountActiveByAuthorization counts non-void services referencing the
	// authorization.
	CountActiveByAuthorization(ctx context.Context, authorizationID uuid.UUID) (int, error)
}
