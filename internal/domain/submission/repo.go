package submission

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Create appends one attempt. There is deliberately no update or delete.
	Create(ctx context.Context, a *Attempt) error
	ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Attempt, error)
}
