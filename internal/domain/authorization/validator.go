package authorization

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hcbs/hcbs/internal/domain/servicerecord"
)

// ValidationResult is the structured outcome of checking a service against an
// authorization. Failures here are expected business outcomes, not errors.
type ValidationResult struct {
	IsValid  bool     `json:"is_valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (r *ValidationResult) addError(format string, args ...interface{}) {
	r.IsValid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// warnThresholdPct is the utilization percentage at which adding a service
// draws a warning.
const warnThresholdPct = 90

// ValidateServiceAgainstAuthorization checks one service against one
// authorization and accumulates every applicable error and warning rather
// than stopping at the first. Billing may proceed against EXPIRING
// authorizations, so a non-active status is only a warning.
func (s *Service) ValidateServiceAgainstAuthorization(ctx context.Context, svc *servicerecord.ServiceRecord, authID uuid.UUID) (*ValidationResult, error) {
	a, err := s.auths.GetByID(ctx, authID)
	if err != nil {
		return nil, err
	}

	res := &ValidationResult{IsValid: true}

	if !a.InDateRange(svc.ServiceDate) {
		res.addError("service date %s is outside the authorization validity range",
			svc.ServiceDate.Format("2006-01-02"))
	}
	if !a.Covers(svc.ServiceTypeID) {
		res.addError("service type %s is not covered by authorization %s", svc.ServiceTypeID, a.Number)
	}
	if svc.ClientID != a.ClientID {
		res.addError("service client does not match authorization client")
	}

	projected := a.UsedUnits + svc.Units
	if projected > a.AuthorizedUnits {
		res.addError("adding %d units would exceed the authorized %d (currently used: %d)",
			svc.Units, a.AuthorizedUnits, a.UsedUnits)
	} else if a.AuthorizedUnits > 0 && projected*100 >= a.AuthorizedUnits*warnThresholdPct {
		res.addWarning("utilization would reach %d of %d units", projected, a.AuthorizedUnits)
	}

	if a.Status != StatusActive && a.Status != StatusExpiring {
		res.addWarning("authorization status is %s", a.Status)
	}

	return res, nil
}

// FindMatchingAuthorization locates coverage for a service that carries no
// explicit authorization reference: among the client's active authorizations
// covering the service type and date, the one with the greatest remaining
// balance wins, first found breaking ties. Returns nil when none qualifies.
func (s *Service) FindMatchingAuthorization(ctx context.Context, svc *servicerecord.ServiceRecord) (*Authorization, error) {
	candidates, err := s.auths.ListActiveByClient(ctx, svc.ClientID)
	if err != nil {
		return nil, err
	}

	var best *Authorization
	for _, a := range candidates {
		if !a.Covers(svc.ServiceTypeID) || !a.InDateRange(svc.ServiceDate) {
			continue
		}
		if best == nil || a.RemainingUnits() > best.RemainingUnits() {
			best = a
		}
	}
	return best, nil
}

// ValidateServiceByID loads the service first, then validates it.
func (s *Service) ValidateServiceByID(ctx context.Context, serviceID, authID uuid.UUID) (*ValidationResult, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return s.ValidateServiceAgainstAuthorization(ctx, svc, authID)
}

// FindMatchingAuthorizationByServiceID loads the service first, then searches
// for coverage.
func (s *Service) FindMatchingAuthorizationByServiceID(ctx context.Context, serviceID uuid.UUID) (*Authorization, error) {
	svc, err := s.services.GetByID(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	return s.FindMatchingAuthorization(ctx, svc)
}
