package payer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	payers Repository
}

func NewService(payers Repository) *Service {
	return &Service{payers: payers}
}

var validSubmissionMethods = map[string]bool{
	MethodElectronic: true, MethodClearinghouse: true, MethodPortal: true,
	MethodDirect: true, MethodPaper: true,
}

var validFormats = map[string]bool{
	FormatX12837P: true, FormatCMS1500: true, FormatUB04: true, FormatCustom: true,
}

func (s *Service) Create(ctx context.Context, p *Payer) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.SubmissionMethod == "" {
		p.SubmissionMethod = MethodPaper
	}
	if !validSubmissionMethods[p.SubmissionMethod] {
		return fmt.Errorf("invalid submission method: %s", p.SubmissionMethod)
	}
	p.Requirements = p.Requirements.Defaulted()
	if !validFormats[p.Requirements.BillingFormat] {
		return fmt.Errorf("invalid billing format: %s", p.Requirements.BillingFormat)
	}
	p.Active = true
	return s.payers.Create(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Payer, error) {
	return s.payers.GetByID(ctx, id)
}

// Requirements returns the payer's billing requirements with defaults applied.
func (s *Service) Requirements(ctx context.Context, id uuid.UUID) (BillingRequirements, error) {
	p, err := s.payers.GetByID(ctx, id)
	if err != nil {
		return BillingRequirements{}, err
	}
	return p.Requirements.Defaulted(), nil
}

func (s *Service) Update(ctx context.Context, p *Payer) error {
	if p.SubmissionMethod != "" && !validSubmissionMethods[p.SubmissionMethod] {
		return fmt.Errorf("invalid submission method: %s", p.SubmissionMethod)
	}
	if p.Requirements.BillingFormat != "" && !validFormats[p.Requirements.BillingFormat] {
		return fmt.Errorf("invalid billing format: %s", p.Requirements.BillingFormat)
	}
	return s.payers.Update(ctx, p)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Payer, int, error) {
	return s.payers.List(ctx, limit, offset)
}
