package claim

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id uuid.UUID) (*Claim, error)
	// GetByIDs loads every requested claim; callers detect missing ids by
	// comparing lengths.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Claim, error)
	ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Claim, int, error)

	// AddService appends one member service in claim order.
	AddService(ctx context.Context, claimID, serviceID uuid.UUID, sequence int) error
	// RemoveServices drops every membership row for the claim, freeing the
	// services to join a future claim.
	RemoveServices(ctx context.Context, claimID uuid.UUID) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	// RecordSubmission stamps how and when the claim went out, with any ids
	// the receiver handed back.
	RecordSubmission(ctx context.Context, id uuid.UUID, method string, date time.Time, trackingID, externalClaimID *string) error

	AppendStatusHistory(ctx context.Context, h *StatusChange) error
	ListStatusHistory(ctx context.Context, claimID uuid.UUID) ([]*StatusChange, error)
}
