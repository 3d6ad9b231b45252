package submission

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hcbs/hcbs/internal/domain/claim"
	"github.com/hcbs/hcbs/internal/domain/payer"
	"github.com/hcbs/hcbs/internal/domain/servicerecord"
	"github.com/hcbs/hcbs/internal/platform/apperr"
	"github.com/hcbs/hcbs/internal/platform/clearinghouse"
)

type mockClaims struct {
	mu      sync.Mutex
	claims  map[uuid.UUID]*claim.Claim
	members map[uuid.UUID][]*servicerecord.ServiceRecord
}

func newMockClaims() *mockClaims {
	return &mockClaims{
		claims:  make(map[uuid.UUID]*claim.Claim),
		members: make(map[uuid.UUID][]*servicerecord.ServiceRecord),
	}
}

func (m *mockClaims) Get(_ context.Context, id uuid.UUID) (*claim.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, apperr.NotFound("claim", id.String())
	}
	cp := *c
	return &cp, nil
}

func (m *mockClaims) GetMany(ctx context.Context, ids []uuid.UUID) ([]*claim.Claim, error) {
	var out []*claim.Claim
	for _, id := range ids {
		if c, err := m.Get(ctx, id); err == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockClaims) Services(_ context.Context, claimID uuid.UUID) ([]*servicerecord.ServiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*servicerecord.ServiceRecord(nil), m.members[claimID]...), nil
}

func (m *mockClaims) MarkSubmitted(_ context.Context, id uuid.UUID, method string, trackingID, externalClaimID *string) (*claim.Claim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.claims[id]
	if !ok {
		return nil, apperr.NotFound("claim", id.String())
	}
	if !claim.Submittable(c.Status) {
		return nil, apperr.Business(apperr.CodeClaimNotSubmittable, "claim %s is %s", id, c.Status)
	}
	now := time.Now().UTC()
	c.Status = claim.StatusSubmitted
	c.SubmissionMethod = &method
	c.SubmissionDate = &now
	c.TrackingID = trackingID
	c.ExternalClaimID = externalClaimID
	cp := *c
	return &cp, nil
}

type mockPayers struct {
	mu     sync.Mutex
	payers map[uuid.UUID]*payer.Payer
}

func newMockPayers() *mockPayers {
	return &mockPayers{payers: make(map[uuid.UUID]*payer.Payer)}
}

func (m *mockPayers) Create(_ context.Context, p *payer.Payer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.payers[p.ID] = &cp
	return nil
}

func (m *mockPayers) GetByID(_ context.Context, id uuid.UUID) (*payer.Payer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payers[id]
	if !ok {
		return nil, apperr.NotFound("payer", id.String())
	}
	cp := *p
	return &cp, nil
}

func (m *mockPayers) Update(_ context.Context, p *payer.Payer) error { return nil }

func (m *mockPayers) List(_ context.Context, _, _ int) ([]*payer.Payer, int, error) {
	return nil, 0, nil
}

type mockAttempts struct {
	mu   sync.Mutex
	rows []*Attempt
}

func (m *mockAttempts) Create(_ context.Context, a *Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *a
	cp.ID = uuid.New()
	cp.CreatedAt = time.Now()
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *mockAttempts) ListByClaim(_ context.Context, claimID uuid.UUID) ([]*Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Attempt
	for _, a := range m.rows {
		if a.ClaimID == claimID {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeCH counts calls and serves scripted responses.
type fakeCH struct {
	mu         sync.Mutex
	claimCalls int
	batchCalls int
	failFirst  int // retryable failures before succeeding
	reject     bool
	permErr    error
}

func (f *fakeCH) SubmitClaim(_ context.Context, _ string, _ []byte, _ string) (*clearinghouse.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.claimCalls++
	if f.permErr != nil {
		return nil, f.permErr
	}
	if f.failFirst > 0 {
		f.failFirst--
		return nil, &apperr.IntegrationError{Op: "submit", StatusCode: 503, Retryable: true, Err: fmt.Errorf("unavailable")}
	}
	if f.reject {
		return &clearinghouse.Response{Accepted: false, Messages: []string{"invalid member id"}}, nil
	}
	return &clearinghouse.Response{
		TrackingID:      fmt.Sprintf("TRK-%d", f.claimCalls),
		ExternalClaimID: fmt.Sprintf("EXT-%d", f.claimCalls),
		Accepted:        true,
	}, nil
}

func (f *fakeCH) SubmitBatch(_ context.Context, _ string, payloads [][]byte, _ string) (*clearinghouse.BatchResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchCalls++
	resp := &clearinghouse.BatchResponse{BatchID: "BATCH-1"}
	for i := range payloads {
		resp.Responses = append(resp.Responses, clearinghouse.Response{
			TrackingID:      fmt.Sprintf("TRK-B%d", i+1),
			ExternalClaimID: fmt.Sprintf("EXT-B%d", i+1),
			Accepted:        true,
		})
	}
	return resp, nil
}

type fixture struct {
	svc      *Service
	claims   *mockClaims
	payers   *mockPayers
	attempts *mockAttempts
	ch       *fakeCH
}

func newFixture() *fixture {
	f := &fixture{
		claims:   newMockClaims(),
		payers:   newMockPayers(),
		attempts: &mockAttempts{},
		ch:       &fakeCH{},
	}
	f.svc = NewService(f.claims, f.payers, f.attempts, f.ch, NewRegistry(), zerolog.Nop())
	return f
}

func (f *fixture) seedPayer(t *testing.T, mutate func(*payer.Payer)) *payer.Payer {
	t.Helper()
	p := &payer.Payer{
		ID:               uuid.New(),
		Name:             "State Medicaid",
		PayerIdentifier:  "MCD-001",
		SubmissionMethod: payer.MethodClearinghouse,
		Requirements:     payer.BillingRequirements{AcceptsElectronic: true},
		Active:           true,
	}
	if mutate != nil {
		mutate(p)
	}
	if err := f.payers.Create(context.Background(), p); err != nil {
		t.Fatalf("seed payer: %v", err)
	}
	return p
}

func (f *fixture) seedClaim(t *testing.T, p *payer.Payer, mutate func(*claim.Claim)) *claim.Claim {
	t.Helper()
	clientID := uuid.New()
	c := &claim.Claim{
		ID:               uuid.New(),
		ClientID:         clientID,
		PayerID:          p.ID,
		Type:             claim.TypeOriginal,
		ClaimType:        payer.ClaimTypeProfessional,
		BillingFormat:    payer.FormatX12837P,
		Status:           claim.StatusDraft,
		ServiceStartDate: time.Now().UTC().AddDate(0, 0, -10),
		ServiceEndDate:   time.Now().UTC().AddDate(0, 0, -5),
		TotalAmount:      250,
	}
	if mutate != nil {
		mutate(c)
	}
	f.claims.mu.Lock()
	f.claims.claims[c.ID] = c
	f.claims.members[c.ID] = []*servicerecord.ServiceRecord{
		{
			ID:            uuid.New(),
			ClientID:      clientID,
			ServiceTypeID: "T1019",
			ServiceDate:   c.ServiceStartDate,
			Units:         4,
			Amount:        c.TotalAmount,
			DocStatus:     servicerecord.DocComplete,
			BillingStatus: servicerecord.BillingInClaim,
			ClaimID:       &c.ID,
		},
	}
	f.claims.mu.Unlock()
	return c
}

func TestSubmitClaim_Success(t *testing.T) {
	f := newFixture()
	p := f.seedPayer(t, nil)
	c := f.seedClaim(t, p, nil)

	res, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.TrackingID == nil || *res.TrackingID == "" {
		t.Error("expected a tracking id")
	}
	if res.ExternalClaimID == nil || *res.ExternalClaimID != "EXT-1" {
		t.Error("expected the payer's external claim id in the result")
	}

	got, _ := f.claims.Get(context.Background(), c.ID)
	if got.Status != claim.StatusSubmitted {
		t.Errorf("claim should be SUBMITTED, got %s", got.Status)
	}
	if got.ExternalClaimID == nil || *got.ExternalClaimID != "EXT-1" {
		t.Error("external claim id should be recorded on the claim")
	}

	attempts, _ := f.attempts.ListByClaim(context.Background(), c.ID)
	if len(attempts) != 1 || !attempts[0].Success {
		t.Errorf("expected one successful attempt, got %+v", attempts)
	}
	if attempts[0].ExternalClaimID == nil || *attempts[0].ExternalClaimID != "EXT-1" {
		t.Error("external claim id should be recorded on the attempt")
	}
}

func TestSubmitClaim_NotSubmittableSkipsNetwork(t *testing.T) {
	f := newFixture()
	p := f.seedPayer(t, nil)
	c := f.seedClaim(t, p, func(c *claim.Claim) { c.Status = claim.StatusPaid })

	_, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if apperr.BusinessCode(err) != apperr.CodeClaimNotSubmittable {
		t.Fatalf("expected claim-not-submittable, got %v", err)
	}
	if f.ch.claimCalls != 0 {
		t.Errorf("no external call should be made, got %d", f.ch.claimCalls)
	}
}

func TestSubmitClaim_ValidationFailureIsDataNotError(t *testing.T) {
	f := newFixture()
	p := f.seedPayer(t, func(p *payer.Payer) { p.Active = false })
	c := f.seedClaim(t, p, nil)

	res, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("validation failure must not be an error: %v", err)
	}
	if res.Success {
		t.Fatal("expected failed result")
	}
	if res.Validation == nil || len(res.Validation.Errors) == 0 {
		t.Fatal("expected validation errors in result")
	}
	if f.ch.claimCalls != 0 {
		t.Errorf("no external call on validation failure, got %d", f.ch.claimCalls)
	}

	got, _ := f.claims.Get(context.Background(), c.ID)
	if got.Status != claim.StatusDraft {
		t.Errorf("claim state must be unchanged, got %s", got.Status)
	}
	attempts, _ := f.attempts.ListByClaim(context.Background(), c.ID)
	if len(attempts) != 1 || attempts[0].Success {
		t.Errorf("expected one failed attempt row, got %+v", attempts)
	}
}

func TestSubmitClaim_PortalGeneratesInstructionsOnly(t *testing.T) {
	f := newFixture()
	p := f.seedPayer(t, func(p *payer.Payer) {
		p.SubmissionMethod = payer.MethodPortal
		p.Requirements.AcceptsElectronic = false
	})
	c := f.seedClaim(t, p, nil)

	res, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.Instructions == nil {
		t.Fatalf("expected success with instructions, got %+v", res)
	}
	if !strings.Contains(*res.Instructions, p.Name) {
		t.Errorf("instructions should name the payer: %s", *res.Instructions)
	}
	if f.ch.claimCalls != 0 || f.ch.batchCalls != 0 {
		t.Error("portal submission must not hit the network")
	}
	got, _ := f.claims.Get(context.Background(), c.ID)
	if got.Status != claim.StatusSubmitted {
		t.Errorf("portal submission still advances the claim, got %s", got.Status)
	}
}

func TestSubmitClaim_UnsupportedMethod(t *testing.T) {
	f := newFixture()
	p := f.seedPayer(t, func(p *payer.Payer) {
		p.SubmissionMethod = payer.MethodPaper
		p.Requirements.AcceptsElectronic = false
	})
	c := f.seedClaim(t, p, nil)

	_, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if apperr.BusinessCode(err) != apperr.CodeUnsupportedMethod {
		t.Fatalf("expected unsupported-submission-method, got %v", err)
	}
	got, _ := f.claims.Get(context.Background(), c.ID)
	if got.Status != claim.StatusDraft {
		t.Errorf("claim state must be unchanged, got %s", got.Status)
	}
}

func TestSubmitClaim_DispatchFailureLeavesClaimUntouched(t *testing.T) {
	f := newFixture()
	f.ch.permErr = &apperr.IntegrationError{Op: "submit", StatusCode: 400, Retryable: false, Err: fmt.Errorf("malformed payload")}
	p := f.seedPayer(t, nil)
	c := f.seedClaim(t, p, nil)

	_, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if f.ch.claimCalls != 1 {
		t.Errorf("non-retryable failure must not be retried, got %d calls", f.ch.claimCalls)
	}

	got, _ := f.claims.Get(context.Background(), c.ID)
	if got.Status != claim.StatusDraft {
		t.Errorf("claim must stay DRAFT for later retry, got %s", got.Status)
	}
	attempts, _ := f.attempts.ListByClaim(context.Background(), c.ID)
	if len(attempts) != 1 || attempts[0].Success {
		t.Errorf("expected one failed attempt row, got %+v", attempts)
	}
}

func TestSubmitClaim_RetriesTransientFailure(t *testing.T) {
	f := newFixture()
	f.ch.failFirst = 1
	p := f.seedPayer(t, nil)
	c := f.seedClaim(t, p, nil)

	res, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success after retry, got %+v", res)
	}
	if f.ch.claimCalls != 2 {
		t.Errorf("expected 2 calls (1 failure + 1 success), got %d", f.ch.claimCalls)
	}
}

func TestSubmitClaim_RejectionIsNotRetried(t *testing.T) {
	f := newFixture()
	f.ch.reject = true
	p := f.seedPayer(t, nil)
	c := f.seedClaim(t, p, nil)

	_, err := f.svc.SubmitClaim(context.Background(), c.ID)
	if err == nil {
		t.Fatal("expected rejection error")
	}
	if apperr.IsRetryable(err) {
		t.Error("a clearinghouse rejection is permanent")
	}
	if f.ch.claimCalls != 1 {
		t.Errorf("rejection must not be retried, got %d calls", f.ch.claimCalls)
	}
}

func TestSubmitBatch_ClearinghouseGroupsOneCall(t *testing.T) {
	f := newFixture()
	p := f.seedPayer(t, nil)
	c1 := f.seedClaim(t, p, nil)
	c2 := f.seedClaim(t, p, nil)
	paid := f.seedClaim(t, p, func(c *claim.Claim) { c.Status = claim.StatusPaid })
	missing := uuid.New()

	res, err := f.svc.SubmitBatch(context.Background(), []uuid.UUID{c1.ID, c2.ID, paid.ID, missing})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if f.ch.batchCalls != 1 {
		t.Errorf("valid clearinghouse subset should go out in one call, got %d", f.ch.batchCalls)
	}
	if f.ch.claimCalls != 0 {
		t.Errorf("clearinghouse group must not loop per claim, got %d", f.ch.claimCalls)
	}
	if res.TotalProcessed != 4 || res.SuccessCount != 2 || res.ErrorCount != 2 {
		t.Fatalf("unexpected report: %+v", res)
	}

	for _, id := range []uuid.UUID{c1.ID, c2.ID} {
		got, _ := f.claims.Get(context.Background(), id)
		if got.Status != claim.StatusSubmitted {
			t.Errorf("claim %s should be SUBMITTED, got %s", id, got.Status)
		}
		if got.TrackingID == nil {
			t.Errorf("claim %s should carry the batch tracking id", id)
		}
		if got.ExternalClaimID == nil {
			t.Errorf("claim %s should carry the payer's external claim id", id)
		}
	}
	got, _ := f.claims.Get(context.Background(), paid.ID)
	if got.Status != claim.StatusPaid {
		t.Errorf("non-submittable claim must be untouched, got %s", got.Status)
	}
}

func TestSubmitBatch_NonClearinghouseLoops(t *testing.T) {
	f := newFixture()
	p := f.seedPayer(t, func(p *payer.Payer) { p.SubmissionMethod = payer.MethodDirect })
	c1 := f.seedClaim(t, p, nil)
	c2 := f.seedClaim(t, p, nil)

	res, err := f.svc.SubmitBatch(context.Background(), []uuid.UUID{c1.ID, c2.ID})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.ch.claimCalls != 2 || f.ch.batchCalls != 0 {
		t.Errorf("direct channel submits individually: %d single, %d batch", f.ch.claimCalls, f.ch.batchCalls)
	}
	if res.SuccessCount != 2 || res.ErrorCount != 0 {
		t.Fatalf("unexpected report: %+v", res)
	}
}
