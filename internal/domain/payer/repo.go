package payer

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Payer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Payer, error)
	Update(ctx context.Context, p *Payer) error
	List(ctx context.Context, limit, offset int) ([]*Payer, int, error)
}
