package authorization

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, a *Authorization) error
	GetByID(ctx context.Context, id uuid.UUID) (*Authorization, error)
	// Update persists mutable fields. Status and used units are excluded;
	// those move only through UpdateStatus and TrackUtilization.
	Update(ctx context.Context, a *Authorization) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// TrackUtilization atomically adjusts the used-unit counter. Additions
	// that would exceed authorized units fail with a coded business error and
	// leave the counter untouched; subtractions floor at zero. Returns the
	// updated authorization.
	TrackUtilization(ctx context.Context, id uuid.UUID, units int, isAddition bool) (*Authorization, error)
	// HasOverlapping reports whether another non-cancelled authorization for
	// the client shares a service type and intersects the date range.
	HasOverlapping(ctx context.Context, clientID uuid.UUID, serviceTypeIDs []string, start time.Time, end *time.Time, excludeID uuid.UUID) (bool, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Authorization, int, error)
	// ListActiveByClient returns the client's ACTIVE and EXPIRING
	// authorizations, used for matching services to coverage.
	ListActiveByClient(ctx context.Context, clientID uuid.UUID) ([]*Authorization, error)
}
