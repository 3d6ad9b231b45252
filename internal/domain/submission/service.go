package submission

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hcbs/hcbs/internal/domain/claim"
	"github.com/hcbs/hcbs/internal/domain/payer"
	"github.com/hcbs/hcbs/internal/domain/servicerecord"
	"github.com/hcbs/hcbs/internal/platform/apperr"
	"github.com/hcbs/hcbs/internal/platform/clearinghouse"
)

// ClaimService is the slice of the claim package the orchestrator drives.
type ClaimService interface {
	Get(ctx context.Context, id uuid.UUID) (*claim.Claim, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]*claim.Claim, error)
	Services(ctx context.Context, claimID uuid.UUID) ([]*servicerecord.ServiceRecord, error)
	MarkSubmitted(ctx context.Context, id uuid.UUID, method string, trackingID, externalClaimID *string) (*claim.Claim, error)
}

// Service formats, dispatches, and audits claim submissions. A claim's state
// only advances after confirmed dispatch; every outcome leaves an attempt row.
type Service struct {
	claims     ClaimService
	payers     payer.Repository
	attempts   Repository
	ch         clearinghouse.Client
	formats    *Registry
	logger     zerolog.Logger
	maxRetries uint64
}

func NewService(claims ClaimService, payers payer.Repository, attempts Repository, ch clearinghouse.Client, formats *Registry, logger zerolog.Logger) *Service {
	return &Service{
		claims:     claims,
		payers:     payers,
		attempts:   attempts,
		ch:         ch,
		formats:    formats,
		logger:     logger.With().Str("component", "submission").Logger(),
		maxRetries: 3,
	}
}

// SubmitClaim runs the full pipeline for one claim: eligibility, payer
// requirements, payload generation, channel dispatch, state advance. A failed
// requirement check comes back as data in the Result; only infrastructure and
// rule violations surface as errors.
func (s *Service) SubmitClaim(ctx context.Context, claimID uuid.UUID) (*Result, error) {
	c, err := s.claims.Get(ctx, claimID)
	if err != nil {
		return nil, err
	}
	if !claim.Submittable(c.Status) {
		return nil, apperr.Business(apperr.CodeClaimNotSubmittable,
			"claim %s is %s; only DRAFT or VALIDATED claims can be submitted", claimID, c.Status)
	}
	p, err := s.payers.GetByID(ctx, c.PayerID)
	if err != nil {
		return nil, err
	}
	records, err := s.claims.Services(ctx, claimID)
	if err != nil {
		return nil, err
	}

	if res := s.validateForSubmission(c, records, p); !res.IsValid {
		s.recordAttempt(ctx, c, p, false, nil, nil, res.Errors)
		return &Result{ClaimID: claimID, Success: false, Validation: res}, nil
	}

	if p.SubmissionMethod == payer.MethodPortal {
		// Portal payers are keyed in by hand; generating the worklist entry is
		// the whole job.
		instructions := fmt.Sprintf("Enter claim %s (%s, $%.2f) in the %s portal.",
			c.ID, c.BillingFormat, c.TotalAmount, p.Name)
		if _, err := s.claims.MarkSubmitted(ctx, claimID, p.SubmissionMethod, nil, nil); err != nil {
			return nil, err
		}
		s.recordAttempt(ctx, c, p, true, nil, nil, nil)
		return &Result{ClaimID: claimID, Success: true, Instructions: &instructions}, nil
	}

	payload, err := s.formats.Format(c.BillingFormat, c, records, p)
	if err != nil {
		return nil, err
	}

	resp, err := s.dispatch(ctx, c, p, payload)
	if err != nil {
		s.recordAttempt(ctx, c, p, false, nil, nil, []string{err.Error()})
		return nil, err
	}

	tracking := &resp.TrackingID
	external := optionalID(resp.ExternalClaimID)
	if _, err := s.claims.MarkSubmitted(ctx, claimID, p.SubmissionMethod, tracking, external); err != nil {
		return nil, err
	}
	s.recordAttempt(ctx, c, p, true, tracking, external, nil)
	return &Result{ClaimID: claimID, Success: true, TrackingID: tracking, ExternalClaimID: external}, nil
}

// optionalID maps the wire convention (empty string means absent) onto the
// model's nullable columns.
func optionalID(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// validateForSubmission checks payer-facing requirements. Failures here are
// expected outcomes, accumulated rather than short-circuited.
func (s *Service) validateForSubmission(c *claim.Claim, records []*servicerecord.ServiceRecord, p *payer.Payer) *ValidationResult {
	res := &ValidationResult{IsValid: true}

	if !p.Active {
		res.addError(fmt.Sprintf("payer %s is inactive", p.Name))
	}
	if len(records) == 0 {
		res.addError("claim has no member services")
	}
	if c.TotalAmount <= 0 {
		res.addError("claim total must be positive")
	}
	for _, rec := range records {
		if rec.DocStatus != servicerecord.DocComplete {
			res.addError(fmt.Sprintf("service %s documentation is %s", rec.ID, rec.DocStatus))
		}
	}

	electronic := p.SubmissionMethod == payer.MethodElectronic ||
		p.SubmissionMethod == payer.MethodClearinghouse ||
		p.SubmissionMethod == payer.MethodDirect
	if electronic && !p.Requirements.AcceptsElectronic {
		res.addError(fmt.Sprintf("payer %s does not accept electronic claims", p.Name))
	}

	if days := p.Requirements.FilingDeadlineDays; days > 0 {
		deadline := c.ServiceEndDate.AddDate(0, 0, days)
		if time.Now().UTC().After(deadline) {
			res.addError(fmt.Sprintf("filing deadline passed on %s", deadline.Format("2006-01-02")))
		}
	}
	return res
}

// dispatch sends the payload out the payer's channel. Retries stay inside
// this call so the caller sees one final outcome; only failures classified
// retryable are re-attempted.
func (s *Service) dispatch(ctx context.Context, c *claim.Claim, p *payer.Payer, payload []byte) (*clearinghouse.Response, error) {
	switch p.SubmissionMethod {
	case payer.MethodElectronic, payer.MethodClearinghouse, payer.MethodDirect:
	default:
		return nil, apperr.Business(apperr.CodeUnsupportedMethod,
			"payer %s submission method %s cannot be dispatched", p.Name, p.SubmissionMethod)
	}

	var resp *clearinghouse.Response
	op := func() error {
		r, err := s.ch.SubmitClaim(ctx, p.PayerIdentifier, payload, c.BillingFormat)
		if err != nil {
			if apperr.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if !r.Accepted {
			return backoff.Permanent(&apperr.IntegrationError{
				Op:        "clearinghouse accept",
				Retryable: false,
				Err:       fmt.Errorf("claim rejected: %s", strings.Join(r.Messages, "; ")),
			})
		}
		resp = r
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *Service) recordAttempt(ctx context.Context, c *claim.Claim, p *payer.Payer, success bool, trackingID, externalClaimID *string, errs []string) {
	a := &Attempt{
		ClaimID:         c.ID,
		Method:          p.SubmissionMethod,
		Format:          c.BillingFormat,
		Success:         success,
		TrackingID:      trackingID,
		ExternalClaimID: externalClaimID,
		Errors:          errs,
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		// The attempt log is best-effort audit; a write failure must not turn
		// a successful submission into a failed one.
		s.logger.Error().Err(err).Str("claim_id", c.ID.String()).Msg("failed to record submission attempt")
	}
}

// SubmitBatch submits many claims, grouping by payer. Clearinghouse payers
// get the valid subset in one network call; other channels loop per claim.
// One claim's failure never blocks its siblings.
func (s *Service) SubmitBatch(ctx context.Context, claimIDs []uuid.UUID) (*BatchResult, error) {
	if len(claimIDs) == 0 {
		return nil, fmt.Errorf("at least one claim is required")
	}

	result := &BatchResult{TotalProcessed: len(claimIDs)}
	claims, err := s.claims.GetMany(ctx, claimIDs)
	if err != nil {
		return nil, err
	}

	found := make(map[uuid.UUID]*claim.Claim, len(claims))
	for _, c := range claims {
		found[c.ID] = c
	}
	byPayer := make(map[uuid.UUID][]*claim.Claim)
	for _, id := range claimIDs {
		c, ok := found[id]
		if !ok {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("claim %s: not found", id))
			continue
		}
		byPayer[c.PayerID] = append(byPayer[c.PayerID], c)
	}

	for payerID, group := range byPayer {
		p, err := s.payers.GetByID(ctx, payerID)
		if err != nil {
			for _, c := range group {
				result.ErrorCount++
				result.Errors = append(result.Errors, fmt.Sprintf("claim %s: %v", c.ID, err))
			}
			continue
		}
		if p.SubmissionMethod == payer.MethodClearinghouse {
			s.submitClearinghouseGroup(ctx, p, group, result)
			continue
		}
		for _, c := range group {
			s.submitOneIntoBatch(ctx, c.ID, result)
		}
	}
	return result, nil
}

func (s *Service) submitOneIntoBatch(ctx context.Context, claimID uuid.UUID, result *BatchResult) {
	res, err := s.SubmitClaim(ctx, claimID)
	if err != nil {
		result.ErrorCount++
		result.Errors = append(result.Errors, fmt.Sprintf("claim %s: %v", claimID, err))
		return
	}
	if !res.Success {
		result.ErrorCount++
		result.Errors = append(result.Errors,
			fmt.Sprintf("claim %s: %s", claimID, strings.Join(res.Validation.Errors, "; ")))
		return
	}
	result.SuccessCount++
	result.ClaimIDs = append(result.ClaimIDs, claimID)
}

// submitClearinghouseGroup validates each claim, then ships the valid subset
// as one batched call. Responses come back positionally.
func (s *Service) submitClearinghouseGroup(ctx context.Context, p *payer.Payer, group []*claim.Claim, result *BatchResult) {
	type prepared struct {
		c       *claim.Claim
		payload []byte
	}
	var ready []prepared

	for _, c := range group {
		if !claim.Submittable(c.Status) {
			result.ErrorCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("claim %s: status %s is not submittable", c.ID, c.Status))
			continue
		}
		records, err := s.claims.Services(ctx, c.ID)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("claim %s: %v", c.ID, err))
			continue
		}
		if res := s.validateForSubmission(c, records, p); !res.IsValid {
			s.recordAttempt(ctx, c, p, false, nil, nil, res.Errors)
			result.ErrorCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("claim %s: %s", c.ID, strings.Join(res.Errors, "; ")))
			continue
		}
		payload, err := s.formats.Format(c.BillingFormat, c, records, p)
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("claim %s: %v", c.ID, err))
			continue
		}
		ready = append(ready, prepared{c: c, payload: payload})
	}
	if len(ready) == 0 {
		return
	}

	payloads := make([][]byte, len(ready))
	for i, pr := range ready {
		payloads[i] = pr.payload
	}
	format := ready[0].c.BillingFormat

	var resp *clearinghouse.BatchResponse
	op := func() error {
		r, err := s.ch.SubmitBatch(ctx, p.PayerIdentifier, payloads, format)
		if err != nil {
			if apperr.IsRetryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), s.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		for _, pr := range ready {
			s.recordAttempt(ctx, pr.c, p, false, nil, nil, []string{err.Error()})
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("claim %s: %v", pr.c.ID, err))
		}
		return
	}

	for i, pr := range ready {
		if i >= len(resp.Responses) {
			result.ErrorCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("claim %s: no acknowledgement in batch %s", pr.c.ID, resp.BatchID))
			continue
		}
		ack := resp.Responses[i]
		if !ack.Accepted {
			s.recordAttempt(ctx, pr.c, p, false, nil, nil, ack.Messages)
			result.ErrorCount++
			result.Errors = append(result.Errors,
				fmt.Sprintf("claim %s: rejected: %s", pr.c.ID, strings.Join(ack.Messages, "; ")))
			continue
		}
		tracking := ack.TrackingID
		external := optionalID(ack.ExternalClaimID)
		if _, err := s.claims.MarkSubmitted(ctx, pr.c.ID, p.SubmissionMethod, &tracking, external); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, fmt.Sprintf("claim %s: %v", pr.c.ID, err))
			continue
		}
		s.recordAttempt(ctx, pr.c, p, true, &tracking, external, nil)
		result.SuccessCount++
		result.ClaimIDs = append(result.ClaimIDs, pr.c.ID)
	}
}

// Attempts returns the append-only audit trail for one claim.
func (s *Service) Attempts(ctx context.Context, claimID uuid.UUID) ([]*Attempt, error) {
	if _, err := s.claims.Get(ctx, claimID); err != nil {
		return nil, err
	}
	return s.attempts.ListByClaim(ctx, claimID)
}
