package servicerecord

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hcbs/hcbs/internal/platform/apperr"
)

type Service struct {
	records Repository
}

func NewService(records Repository) *Service {
	return &Service{records: records}
}

func (s *Service) Create(ctx context.Context, rec *ServiceRecord) error {
	if rec.ClientID == uuid.Nil {
		return fmt.Errorf("client_id is required")
	}
	if rec.ServiceTypeID == "" {
		return fmt.Errorf("service_type_id is required")
	}
	if rec.ServiceDate.IsZero() {
		return fmt.Errorf("service_date is required")
	}
	if rec.Units <= 0 {
		return fmt.Errorf("units must be positive")
	}
	if rec.Amount < 0 {
		return fmt.Errorf("amount must not be negative")
	}
	if rec.DocStatus == "" {
		rec.DocStatus = DocIncomplete
	}
	if !validDocStatuses[rec.DocStatus] {
		return fmt.Errorf("invalid documentation status: %s", rec.DocStatus)
	}
	rec.BillingStatus = BillingUnbilled
	return s.records.Create(ctx, rec)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	return s.records.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, rec *ServiceRecord) error {
	current, err := s.records.GetByID(ctx, rec.ID)
	if err != nil {
		return err
	}
	// Services already bundled into a claim are frozen; the claim workflow
	// owns them from that point.
	if current.BillingStatus == BillingInClaim || current.BillingStatus == BillingBilled {
		return apperr.Business(apperr.CodeInvalidServiceStatus,
			"service %s is %s and cannot be edited", rec.ID, current.BillingStatus)
	}
	if rec.DocStatus != "" && !validDocStatuses[rec.DocStatus] {
		return fmt.Errorf("invalid documentation status: %s", rec.DocStatus)
	}
	rec.BillingStatus = current.BillingStatus
	rec.ClaimID = current.ClaimID
	return s.records.Update(ctx, rec)
}

// MarkReadyForBilling moves an unbilled service into the billing queue.
// Documentation must be complete first.
func (s *Service) MarkReadyForBilling(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.BillingStatus != BillingUnbilled {
		return nil, apperr.Business(apperr.CodeInvalidServiceStatus,
			"service %s is %s, expected %s", id, rec.BillingStatus, BillingUnbilled)
	}
	if rec.DocStatus != DocComplete {
		return nil, apperr.Business(apperr.CodeIncompleteDocumentation,
			"service %s documentation is %s", id, rec.DocStatus)
	}
	if err := s.records.SetBillingStatus(ctx, id, BillingReadyForBilling); err != nil {
		return nil, err
	}
	rec.BillingStatus = BillingReadyForBilling
	return rec, nil
}

// Void removes a service from billing consideration. Services inside a claim
// cannot be voided until the claim releases them.
func (s *Service) Void(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	rec, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.BillingStatus == BillingInClaim || rec.BillingStatus == BillingBilled {
		return nil, apperr.Business(apperr.CodeInvalidServiceStatus,
			"service %s is %s and cannot be voided", id, rec.BillingStatus)
	}
	if err := s.records.SetBillingStatus(ctx, id, BillingVoid); err != nil {
		return nil, err
	}
	rec.BillingStatus = BillingVoid
	return rec, nil
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*ServiceRecord, int, error) {
	return s.records.ListByClient(ctx, clientID, limit, offset)
}
