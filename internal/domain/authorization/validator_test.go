package authorization

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/hcbs/hcbs/internal/domain/servicerecord"
	"github.com/hcbs/hcbs/internal/platform/apperr"
)

func sampleService(a *Authorization, units int) *servicerecord.ServiceRecord {
	return &servicerecord.ServiceRecord{
		ID:            uuid.New(),
		ClientID:      a.ClientID,
		ServiceTypeID: "T1019",
		ServiceDate:   date(2024, 3, 15),
		Units:         units,
		DocStatus:     servicerecord.DocComplete,
		BillingStatus: servicerecord.BillingUnbilled,
	}
}

func TestValidateService_AccumulatesAllErrors(t *testing.T) {
	auths := newMockAuthRepo()
	svc := newTestService(auths, newMockServiceRepo())
	end := date(2024, 6, 30)
	a := seedAuth(t, auths, func(a *Authorization) {
		a.EndDate = &end
		a.UsedUnits = 0
	})

	bad := &servicerecord.ServiceRecord{
		ID:            uuid.New(),
		ClientID:      uuid.New(), // different client
		ServiceTypeID: "S5125",    // not covered
		ServiceDate:   date(2025, 1, 1),
		Units:         150, // exceeds authorized 100
	}

	res, err := svc.ValidateServiceAgainstAuthorization(context.Background(), bad, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.IsValid {
		t.Fatal("expected invalid result")
	}
	if len(res.Errors) != 4 {
		t.Fatalf("expected date, type, client and units errors, got %d: %v", len(res.Errors), res.Errors)
	}
}

func TestValidateService_WarnsNearLimit(t *testing.T) {
	auths := newMockAuthRepo()
	svc := newTestService(auths, newMockServiceRepo())
	a := seedAuth(t, auths, nil)
	if _, err := svc.TrackUtilization(context.Background(), a.ID, 85, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// 85 + 10 = 95 of 100: within the limit but past the warning line.
	res, err := svc.ValidateServiceAgainstAuthorization(context.Background(), sampleService(a, 10), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsValid {
		t.Fatalf("expected valid result, errors: %v", res.Errors)
	}
	found := false
	for _, w := range res.Warnings {
		if strings.Contains(w, "95 of 100") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected near-limit warning, got %v", res.Warnings)
	}
}

func TestValidateService_NonActiveStatusIsWarningOnly(t *testing.T) {
	auths := newMockAuthRepo()
	svc := newTestService(auths, newMockServiceRepo())
	a := seedAuth(t, auths, func(a *Authorization) { a.Status = StatusApproved })

	res, err := svc.ValidateServiceAgainstAuthorization(context.Background(), sampleService(a, 5), a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsValid {
		t.Fatalf("status alone must not invalidate, errors: %v", res.Errors)
	}
	if len(res.Warnings) == 0 {
		t.Error("expected a status warning")
	}
}

func TestValidateService_UnknownAuthorization(t *testing.T) {
	svc := newTestService(newMockAuthRepo(), newMockServiceRepo())
	_, err := svc.ValidateServiceAgainstAuthorization(context.Background(),
		&servicerecord.ServiceRecord{ClientID: uuid.New(), ServiceTypeID: "T1019", ServiceDate: date(2024, 1, 1), Units: 1},
		uuid.New())
	if !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFindMatchingAuthorization_PicksGreatestRemaining(t *testing.T) {
	auths := newMockAuthRepo()
	svc := newTestService(auths, newMockServiceRepo())
	clientID := uuid.New()

	lowEnd := date(2024, 6, 30)
	low := seedAuth(t, auths, func(a *Authorization) {
		a.ClientID = clientID
		a.EndDate = &lowEnd
		a.UsedUnits = 60 // 40 remaining
	})
	_ = low
	high := seedAuth(t, auths, func(a *Authorization) {
		a.ClientID = clientID
		a.StartDate = date(2024, 7, 1)
		a.UsedUnits = 10 // 90 remaining, but wrong date range for March
	})

	rec := &servicerecord.ServiceRecord{
		ClientID:      clientID,
		ServiceTypeID: "T1019",
		ServiceDate:   date(2024, 3, 15),
		Units:         5,
	}
	match, err := svc.FindMatchingAuthorization(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil || match.ID != low.ID {
		t.Fatalf("expected the in-range authorization, got %+v", match)
	}

	// A later service falls in the second authorization's range.
	rec.ServiceDate = date(2024, 8, 1)
	match, err = svc.FindMatchingAuthorization(context.Background(), rec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match == nil || match.ID != high.ID {
		t.Fatalf("expected the open-ended authorization, got %+v", match)
	}
}

func TestFindMatchingAuthorization_NoneQualifies(t *testing.T) {
	auths := newMockAuthRepo()
	svc := newTestService(auths, newMockServiceRepo())
	clientID := uuid.New()
	seedAuth(t, auths, func(a *Authorization) {
		a.ClientID = clientID
		a.ServiceTypeIDs = []string{"S5125"}
	})

	match, err := svc.FindMatchingAuthorization(context.Background(), &servicerecord.ServiceRecord{
		ClientID:      clientID,
		ServiceTypeID: "T1019",
		ServiceDate:   date(2024, 3, 15),
		Units:         5,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match, got %+v", match)
	}
}
