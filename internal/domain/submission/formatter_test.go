package submission

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/hcbs/hcbs/internal/domain/claim"
	"github.com/hcbs/hcbs/internal/domain/payer"
	"github.com/hcbs/hcbs/internal/domain/servicerecord"
)

func formatterFixtures() (*claim.Claim, []*servicerecord.ServiceRecord, *payer.Payer) {
	c := &claim.Claim{
		ID:               uuid.New(),
		ClientID:         uuid.New(),
		PayerID:          uuid.New(),
		ClaimType:        payer.ClaimTypeProfessional,
		BillingFormat:    payer.FormatX12837P,
		Status:           claim.StatusDraft,
		ServiceStartDate: time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		ServiceEndDate:   time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC),
		TotalAmount:      300,
	}
	records := []*servicerecord.ServiceRecord{
		{ID: uuid.New(), ClientID: c.ClientID, ServiceTypeID: "T1019", ServiceDate: c.ServiceStartDate, Units: 4, Amount: 100},
		{ID: uuid.New(), ClientID: c.ClientID, ServiceTypeID: "T1019", ServiceDate: c.ServiceEndDate, Units: 8, Amount: 200},
	}
	p := &payer.Payer{ID: c.PayerID, Name: "State Medicaid", PayerIdentifier: "MCD-001"}
	return c, records, p
}

func TestRegistry_X12HasServiceLines(t *testing.T) {
	c, records, p := formatterFixtures()
	out, err := NewRegistry().Format(payer.FormatX12837P, c, records, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := string(out)
	for _, want := range []string{"ST*837", "CLM*" + c.ID.String(), "SV1*HC:T1019", "LX*1", "LX*2", "MCD-001"} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %q in payload:\n%s", want, s)
		}
	}
}

func TestRegistry_FormPayloadCarriesLines(t *testing.T) {
	c, records, p := formatterFixtures()
	out, err := NewRegistry().Format(payer.FormatCMS1500, c, records, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if decoded["form"] != "CMS-1500" {
		t.Errorf("wrong form: %v", decoded["form"])
	}
	lines, ok := decoded["lines"].([]interface{})
	if !ok || len(lines) != 2 {
		t.Errorf("expected 2 lines, got %v", decoded["lines"])
	}
}

func TestRegistry_UnknownFormat(t *testing.T) {
	c, records, p := formatterFixtures()
	if _, err := NewRegistry().Format("HL7", c, records, p); err == nil {
		t.Fatal("expected error for unregistered format")
	}
}
