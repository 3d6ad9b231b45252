package submission

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hcbs/hcbs/internal/domain/claim"
	"github.com/hcbs/hcbs/internal/domain/payer"
	"github.com/hcbs/hcbs/internal/domain/servicerecord"
)

// Formatter renders a claim into the wire payload one billing format expects.
type Formatter interface {
	Format(c *claim.Claim, services []*servicerecord.ServiceRecord, p *payer.Payer) ([]byte, error)
}

// Registry maps billing formats to formatters. New channels register here
// without touching the orchestrator.
type Registry struct {
	byFormat map[string]Formatter
}

func NewRegistry() *Registry {
	r := &Registry{byFormat: make(map[string]Formatter)}
	r.Register(payer.FormatX12837P, x12Formatter{})
	r.Register(payer.FormatCMS1500, formFormatter{form: "CMS-1500"})
	r.Register(payer.FormatUB04, formFormatter{form: "UB-04"})
	r.Register(payer.FormatCustom, customFormatter{})
	return r
}

func (r *Registry) Register(format string, f Formatter) {
	r.byFormat[format] = f
}

func (r *Registry) Format(format string, c *claim.Claim, services []*servicerecord.ServiceRecord, p *payer.Payer) ([]byte, error) {
	f, ok := r.byFormat[format]
	if !ok {
		return nil, fmt.Errorf("no formatter registered for billing format %s", format)
	}
	return f.Format(c, services, p)
}

// x12Formatter emits an 837P transaction set: one CLM loop with SV1 service
// lines, segment-per-line with ~ terminators.
type x12Formatter struct{}

func (x12Formatter) Format(c *claim.Claim, services []*servicerecord.ServiceRecord, p *payer.Payer) ([]byte, error) {
	var b strings.Builder
	now := time.Now().UTC()
	write := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString("~\n")
	}

	write("ST*837*%s*005010X222A1", c.ID.String()[:8])
	write("BHT*0019*00*%s*%s*%s*CH", c.ID.String()[:8], now.Format("20060102"), now.Format("1504"))
	write("NM1*PR*2*%s*****PI*%s", p.Name, p.PayerIdentifier)
	write("CLM*%s*%.2f***11:B:1*Y*A*Y*Y", c.ID, c.TotalAmount)
	write("DTP*434*RD8*%s-%s",
		c.ServiceStartDate.Format("20060102"), c.ServiceEndDate.Format("20060102"))
	for i, s := range services {
		write("LX*%d", i+1)
		write("SV1*HC:%s*%.2f*UN*%d***1", s.ServiceTypeID, s.Amount, s.Units)
		write("DTP*472*D8*%s", s.ServiceDate.Format("20060102"))
	}
	write("SE*%d*%s", len(services)*3+5, c.ID.String()[:8])
	return []byte(b.String()), nil
}

// formFormatter renders paper-form layouts (CMS-1500, UB-04) as a structured
// field map the downstream print/render step consumes.
type formFormatter struct {
	form string
}

func (f formFormatter) Format(c *claim.Claim, services []*servicerecord.ServiceRecord, p *payer.Payer) ([]byte, error) {
	lines := make([]map[string]interface{}, 0, len(services))
	for _, s := range services {
		lines = append(lines, map[string]interface{}{
			"service_date": s.ServiceDate.Format("2006-01-02"),
			"procedure":    s.ServiceTypeID,
			"units":        s.Units,
			"charge":       s.Amount,
		})
	}
	return json.Marshal(map[string]interface{}{
		"form":         f.form,
		"claim_id":     c.ID,
		"claim_type":   c.ClaimType,
		"payer":        p.PayerIdentifier,
		"period_start": c.ServiceStartDate.Format("2006-01-02"),
		"period_end":   c.ServiceEndDate.Format("2006-01-02"),
		"total_charge": c.TotalAmount,
		"lines":        lines,
	})
}

// customFormatter is the fallback for payers with bespoke intake APIs: the
// full claim and service detail as JSON for a payer-specific adapter.
type customFormatter struct{}

func (customFormatter) Format(c *claim.Claim, services []*servicerecord.ServiceRecord, p *payer.Payer) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"payer_identifier": p.PayerIdentifier,
		"claim":            c,
		"services":         services,
	})
}
