package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	clients Repository
}

func NewService(clients Repository) *Service {
	return &Service{clients: clients}
}

var validClientStatuses = map[string]bool{
	"active": true, "inactive": true, "discharged": true,
}

func (s *Service) Create(ctx context.Context, c *Client) error {
	if c.FirstName == "" || c.LastName == "" {
		return fmt.Errorf("first_name and last_name are required")
	}
	if c.Status == "" {
		c.Status = "active"
	}
	if !validClientStatuses[c.Status] {
		return fmt.Errorf("invalid client status: %s", c.Status)
	}
	return s.clients.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.clients.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Client) error {
	if c.Status != "" && !validClientStatuses[c.Status] {
		return fmt.Errorf("invalid client status: %s", c.Status)
	}
	return s.clients.Update(ctx, c)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	return s.clients.List(ctx, limit, offset)
}
