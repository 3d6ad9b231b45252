package client

import (
	"time"

	"github.com/google/uuid"
)

// Client is a person receiving home-and-community-based services.
type Client struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	FirstName   string     `db:"first_name" json:"first_name"`
	LastName    string     `db:"last_name" json:"last_name"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	MedicaidID  *string    `db:"medicaid_id" json:"medicaid_id,omitempty"`
	Status      string     `db:"status" json:"status"`
	Notes       *string    `db:"notes" json:"notes,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}
