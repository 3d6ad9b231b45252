package servicerecord

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hcbs/hcbs/internal/platform/apperr"
)

// mockRepo is an in-memory Repository for tests.
type mockRepo struct {
	mu      sync.Mutex
	records map[uuid.UUID]*ServiceRecord
}

func newMockRepo() *mockRepo {
	return &mockRepo{records: make(map[uuid.UUID]*ServiceRecord)}
}

func (m *mockRepo) Create(_ context.Context, s *ServiceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	cp := *s
	m.records[s.ID] = &cp
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*ServiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[id]
	if !ok {
		return nil, apperr.NotFound("service", id.String())
	}
	cp := *s
	return &cp, nil
}

func (m *mockRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*ServiceRecord, error) {
	var out []*ServiceRecord
	for _, id := range ids {
		s, err := m.GetByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *mockRepo) Update(_ context.Context, s *ServiceRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[s.ID]; !ok {
		return apperr.NotFound("service", s.ID.String())
	}
	cp := *s
	m.records[s.ID] = &cp
	return nil
}

func (m *mockRepo) ListByClient(_ context.Context, clientID uuid.UUID, limit, offset int) ([]*ServiceRecord, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ServiceRecord
	for _, s := range m.records {
		if s.ClientID == clientID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, len(out), nil
}

func (m *mockRepo) ListByClaim(_ context.Context, claimID uuid.UUID) ([]*ServiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*ServiceRecord
	for _, s := range m.records {
		if s.ClaimID != nil && *s.ClaimID == claimID {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) AttachToClaim(_ context.Context, serviceID, claimID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[serviceID]
	if !ok {
		return apperr.NotFound("service", serviceID.String())
	}
	if s.BillingStatus != BillingReadyForBilling || s.ClaimID != nil {
		return apperr.Business(apperr.CodeInvalidServiceStatus, "service %s is not attachable", serviceID)
	}
	s.BillingStatus = BillingInClaim
	cid := claimID
	s.ClaimID = &cid
	return nil
}

func (m *mockRepo) DetachFromClaim(_ context.Context, claimID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.records {
		if s.ClaimID != nil && *s.ClaimID == claimID && s.BillingStatus == BillingInClaim {
			s.BillingStatus = BillingReadyForBilling
			s.ClaimID = nil
			n++
		}
	}
	return n, nil
}

func (m *mockRepo) SetBillingStatus(_ context.Context, serviceID uuid.UUID, status BillingStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.records[serviceID]
	if !ok {
		return apperr.NotFound("service", serviceID.String())
	}
	s.BillingStatus = status
	return nil
}

func (m *mockRepo) RevertUnderDocumented(_ context.Context, authorizationID uuid.UUID, note string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.records {
		if s.AuthorizationID == nil || *s.AuthorizationID != authorizationID {
			continue
		}
		if s.DocStatus == DocComplete {
			continue
		}
		if s.BillingStatus != BillingUnbilled && s.BillingStatus != BillingReadyForBilling {
			continue
		}
		s.BillingStatus = BillingUnbilled
		if s.Notes != nil {
			joined := *s.Notes + "\n" + note
			s.Notes = &joined
		} else {
			n2 := note
			s.Notes = &n2
		}
		n++
	}
	return n, nil
}

func (m *mockRepo) CountActiveByAuthorization(_ context.Context, authorizationID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.records {
		if s.AuthorizationID != nil && *s.AuthorizationID == authorizationID && s.BillingStatus != BillingVoid {
			n++
		}
	}
	return n, nil
}

func newRecord(t *testing.T, repo *mockRepo, doc DocumentationStatus, billing BillingStatus) *ServiceRecord {
	t.Helper()
	rec := &ServiceRecord{
		ID:            uuid.New(),
		ClientID:      uuid.New(),
		ServiceTypeID: "T1019",
		ServiceDate:   time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Units:         4,
		Amount:        120.00,
		DocStatus:     doc,
		BillingStatus: billing,
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatalf("create record: %v", err)
	}
	return rec
}

func TestMarkReadyForBilling_RequiresCompleteDocumentation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	rec := newRecord(t, repo, DocPendingReview, BillingUnbilled)

	_, err := svc.MarkReadyForBilling(context.Background(), rec.ID)
	if apperr.BusinessCode(err) != apperr.CodeIncompleteDocumentation {
		t.Fatalf("expected incomplete-documentation, got %v", err)
	}
}

func TestMarkReadyForBilling_Succeeds(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	rec := newRecord(t, repo, DocComplete, BillingUnbilled)

	out, err := svc.MarkReadyForBilling(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.BillingStatus != BillingReadyForBilling {
		t.Errorf("expected READY_FOR_BILLING, got %s", out.BillingStatus)
	}
}

func TestVoid_RejectsInClaim(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	rec := newRecord(t, repo, DocComplete, BillingInClaim)

	_, err := svc.Void(context.Background(), rec.ID)
	if apperr.BusinessCode(err) != apperr.CodeInvalidServiceStatus {
		t.Fatalf("expected invalid-service-status, got %v", err)
	}
}

func TestUpdate_FrozenOnceInClaim(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	rec := newRecord(t, repo, DocComplete, BillingInClaim)

	rec.Units = 8
	err := svc.Update(context.Background(), rec)
	if apperr.BusinessCode(err) != apperr.CodeInvalidServiceStatus {
		t.Fatalf("expected invalid-service-status, got %v", err)
	}
}

func TestRevertUnderDocumented_AppendsNote(t *testing.T) {
	repo := newMockRepo()
	authID := uuid.New()

	rec := newRecord(t, repo, DocPendingReview, BillingReadyForBilling)
	rec.AuthorizationID = &authID
	if err := repo.Update(context.Background(), rec); err != nil {
		t.Fatalf("update: %v", err)
	}
	complete := newRecord(t, repo, DocComplete, BillingReadyForBilling)
	complete.AuthorizationID = &authID
	if err := repo.Update(context.Background(), complete); err != nil {
		t.Fatalf("update: %v", err)
	}

	n, err := repo.RevertUnderDocumented(context.Background(), authID, "authorization expired")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reverted record, got %d", n)
	}

	got, _ := repo.GetByID(context.Background(), rec.ID)
	if got.BillingStatus != BillingUnbilled {
		t.Errorf("expected UNBILLED, got %s", got.BillingStatus)
	}
	if got.Notes == nil || !strings.Contains(*got.Notes, "authorization expired") {
		t.Errorf("expected appended note, got %v", got.Notes)
	}

	untouched, _ := repo.GetByID(context.Background(), complete.ID)
	if untouched.BillingStatus != BillingReadyForBilling {
		t.Errorf("fully documented service should not be reverted, got %s", untouched.BillingStatus)
	}
}
