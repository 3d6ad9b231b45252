package claim

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hcbs/hcbs/internal/domain/payer"
	"github.com/hcbs/hcbs/internal/domain/servicerecord"
	"github.com/hcbs/hcbs/internal/platform/apperr"
	"github.com/hcbs/hcbs/internal/platform/db"
)

// Service owns claim creation and the lifecycle state machine. Member services
// change billing status only inside the conversion transaction here.
type Service struct {
	claims   Repository
	services servicerecord.Repository
	payers   payer.Repository
	tx       db.TxRunner
	logger   zerolog.Logger
}

func NewService(claims Repository, services servicerecord.Repository, payers payer.Repository, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		claims:   claims,
		services: services,
		payers:   payers,
		tx:       tx,
		logger:   logger.With().Str("component", "claim").Logger(),
	}
}

// ConvertServicesToClaim bundles ready-for-billing services into one new DRAFT
// claim. Claim insert, membership rows, and each service's flip to IN_CLAIM
// commit atomically; any failure leaves every input service untouched.
func (s *Service) ConvertServicesToClaim(ctx context.Context, serviceIDs []uuid.UUID, payerID uuid.UUID, notes *string) (*Claim, error) {
	if len(serviceIDs) == 0 {
		return nil, fmt.Errorf("at least one service is required")
	}
	if payerID == uuid.Nil {
		return nil, fmt.Errorf("payer_id is required")
	}

	var out *Claim
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		p, err := s.payers.GetByID(ctx, payerID)
		if err != nil {
			return err
		}

		records, err := s.services.GetByIDs(ctx, serviceIDs)
		if err != nil {
			return err
		}
		if len(records) != len(serviceIDs) {
			return missingServiceError(serviceIDs, records)
		}

		if err := validateConvertible(records); err != nil {
			return err
		}

		c := buildClaim(records, p, notes)
		if err := s.claims.Create(ctx, c); err != nil {
			return err
		}
		for i, rec := range records {
			if err := s.claims.AddService(ctx, c.ID, rec.ID, i+1); err != nil {
				return err
			}
			if err := s.services.AttachToClaim(ctx, rec.ID, c.ID); err != nil {
				return err
			}
		}
		if err := s.claims.AppendStatusHistory(ctx, &StatusChange{
			ClaimID:    c.ID,
			FromStatus: c.Status,
			ToStatus:   c.Status,
			Note:       fmt.Sprintf("Created from %d services", len(records)),
		}); err != nil {
			return err
		}

		s.logger.Info().
			Str("claim_id", c.ID.String()).
			Str("payer_id", payerID.String()).
			Int("services", len(records)).
			Float64("total_amount", c.TotalAmount).
			Msg("claim created")
		out = c
		return nil
	})
	return out, err
}

func missingServiceError(requested []uuid.UUID, found []*servicerecord.ServiceRecord) error {
	seen := make(map[uuid.UUID]bool, len(found))
	for _, rec := range found {
		seen[rec.ID] = true
	}
	for _, id := range requested {
		if !seen[id] {
			return apperr.NotFound("service", id.String())
		}
	}
	return apperr.NotFound("service", "unknown")
}

func validateConvertible(records []*servicerecord.ServiceRecord) error {
	clientID := records[0].ClientID
	for _, rec := range records {
		if rec.BillingStatus != servicerecord.BillingReadyForBilling {
			return apperr.Business(apperr.CodeInvalidServiceStatus,
				"service %s has billing status %s, expected %s",
				rec.ID, rec.BillingStatus, servicerecord.BillingReadyForBilling)
		}
		if rec.DocStatus != servicerecord.DocComplete {
			return apperr.Business(apperr.CodeIncompleteDocumentation,
				"service %s has documentation status %s", rec.ID, rec.DocStatus)
		}
		if rec.ClientID != clientID {
			return apperr.Business(apperr.CodeDifferentClients,
				"services span multiple clients; one claim covers one client")
		}
		if rec.ClaimID != nil {
			return apperr.Business(apperr.CodeInvalidServiceStatus,
				"service %s already belongs to claim %s", rec.ID, rec.ClaimID)
		}
	}
	return nil
}

func buildClaim(records []*servicerecord.ServiceRecord, p *payer.Payer, notes *string) *Claim {
	start, end := records[0].ServiceDate, records[0].ServiceDate
	var total float64
	for _, rec := range records {
		if rec.ServiceDate.Before(start) {
			start = rec.ServiceDate
		}
		if rec.ServiceDate.After(end) {
			end = rec.ServiceDate
		}
		total += rec.Amount
	}

	req := p.Requirements.Defaulted()
	return &Claim{
		ClientID:         records[0].ClientID,
		PayerID:          p.ID,
		Type:             TypeOriginal,
		ClaimType:        req.DefaultClaimType,
		BillingFormat:    req.BillingFormat,
		Status:           StatusDraft,
		ServiceStartDate: start,
		ServiceEndDate:   end,
		TotalAmount:      total,
		Notes:            notes,
	}
}

// ConvertGroup is one caller-partitioned unit of batch conversion.
type ConvertGroup struct {
	ServiceIDs []uuid.UUID `json:"service_ids"`
	PayerID    uuid.UUID   `json:"payer_id"`
	Notes      *string     `json:"notes,omitempty"`
}

// BatchReport accumulates per-group conversion outcomes.
type BatchReport struct {
	TotalProcessed int         `json:"total_processed"`
	SuccessCount   int         `json:"success_count"`
	ErrorCount     int         `json:"error_count"`
	Errors         []string    `json:"errors,omitempty"`
	ClaimIDs       []uuid.UUID `json:"claim_ids,omitempty"`
}

// BatchConvertServicesToClaims converts each group independently: one group's
// failure rolls back that group only and is recorded in the report.
func (s *Service) BatchConvertServicesToClaims(ctx context.Context, groups []ConvertGroup) *BatchReport {
	report := &BatchReport{TotalProcessed: len(groups)}
	for i, g := range groups {
		c, err := s.ConvertServicesToClaim(ctx, g.ServiceIDs, g.PayerID, g.Notes)
		if err != nil {
			report.ErrorCount++
			report.Errors = append(report.Errors, fmt.Sprintf("group %d: %v", i+1, err))
			continue
		}
		report.SuccessCount++
		report.ClaimIDs = append(report.ClaimIDs, c.ID)
	}
	return report
}

// TransitionStatus enforces the lifecycle table and appends an audit row.
// Adverse transitions leave member services attached and unchanged; voiding
// releases members back to READY_FOR_BILLING so they can be rebilled.
func (s *Service) TransitionStatus(ctx context.Context, id uuid.UUID, to Status, note string) (*Claim, error) {
	var out *Claim
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.claims.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(c.Status, to) {
			return apperr.Business(apperr.CodeInvalidStatusTransition,
				"claim cannot move from %s to %s", c.Status, to)
		}
		if err := s.claims.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		if to == StatusVoid {
			released, err := s.services.DetachFromClaim(ctx, id)
			if err != nil {
				return err
			}
			if err := s.claims.RemoveServices(ctx, id); err != nil {
				return err
			}
			s.logger.Info().
				Str("claim_id", id.String()).
				Int("released", released).
				Msg("released services from voided claim")
		}
		if err := s.claims.AppendStatusHistory(ctx, &StatusChange{
			ClaimID:    id,
			FromStatus: c.Status,
			ToStatus:   to,
			Note:       note,
		}); err != nil {
			return err
		}
		c.Status = to
		out = c
		return nil
	})
	return out, err
}

// MarkSubmitted records a confirmed dispatch and advances the claim to
// SUBMITTED in one transaction. Callers must have already confirmed the claim
// was submittable; the check repeats here because dispatch takes time.
func (s *Service) MarkSubmitted(ctx context.Context, id uuid.UUID, method string, trackingID, externalClaimID *string) (*Claim, error) {
	var out *Claim
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		c, err := s.claims.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !Submittable(c.Status) {
			return apperr.Business(apperr.CodeClaimNotSubmittable,
				"claim %s is %s; only DRAFT or VALIDATED claims can be submitted", id, c.Status)
		}
		now := time.Now().UTC()
		if err := s.claims.RecordSubmission(ctx, id, method, now, trackingID, externalClaimID); err != nil {
			return err
		}
		if err := s.claims.UpdateStatus(ctx, id, StatusSubmitted); err != nil {
			return err
		}
		if err := s.claims.AppendStatusHistory(ctx, &StatusChange{
			ClaimID:    id,
			FromStatus: c.Status,
			ToStatus:   StatusSubmitted,
			Note:       fmt.Sprintf("Submitted via %s", method),
		}); err != nil {
			return err
		}
		c.Status = StatusSubmitted
		c.SubmissionMethod = &method
		c.SubmissionDate = &now
		c.TrackingID = trackingID
		c.ExternalClaimID = externalClaimID
		out = c
		return nil
	})
	return out, err
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Claim, error) {
	return s.claims.GetByID(ctx, id)
}

func (s *Service) GetMany(ctx context.Context, ids []uuid.UUID) ([]*Claim, error) {
	return s.claims.GetByIDs(ctx, ids)
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	return s.claims.ListByClient(ctx, clientID, limit, offset)
}

// Services returns the claim's member service records.
func (s *Service) Services(ctx context.Context, claimID uuid.UUID) ([]*servicerecord.ServiceRecord, error) {
	if _, err := s.claims.GetByID(ctx, claimID); err != nil {
		return nil, err
	}
	return s.services.ListByClaim(ctx, claimID)
}

func (s *Service) StatusHistory(ctx context.Context, claimID uuid.UUID) ([]*StatusChange, error) {
	if _, err := s.claims.GetByID(ctx, claimID); err != nil {
		return nil, err
	}
	return s.claims.ListStatusHistory(ctx, claimID)
}
