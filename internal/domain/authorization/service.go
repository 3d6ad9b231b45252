package authorization

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hcbs/hcbs/internal/domain/servicerecord"
	"github.com/hcbs/hcbs/internal/platform/apperr"
	"github.com/hcbs/hcbs/internal/platform/db"
)

// Service is the authorization ledger. It exclusively owns utilization
// mutation and status transitions; nothing else writes those fields.
type Service struct {
	auths    Repository
	services servicerecord.Repository
	tx       db.TxRunner
	logger   zerolog.Logger
}

func NewService(auths Repository, services servicerecord.Repository, tx db.TxRunner, logger zerolog.Logger) *Service {
	return &Service{
		auths:    auths,
		services: services,
		tx:       tx,
		logger:   logger.With().Str("component", "authorization").Logger(),
	}
}

func (s *Service) validate(a *Authorization) error {
	if a.ClientID == uuid.Nil {
		return fmt.Errorf("client_id is required")
	}
	if a.Number == "" {
		return fmt.Errorf("authorization_number is required")
	}
	if a.StartDate.IsZero() {
		return fmt.Errorf("start_date is required")
	}
	if a.EndDate != nil && a.EndDate.Before(a.StartDate) {
		return fmt.Errorf("end_date must not precede start_date")
	}
	if a.AuthorizedUnits < 0 {
		return fmt.Errorf("authorized_units must not be negative")
	}
	if len(a.ServiceTypeIDs) == 0 {
		return fmt.Errorf("at least one service type is required")
	}
	return nil
}

// Create persists a new authorization after rejecting double coverage.
// Authorizations start REQUESTED unless created directly APPROVED.
func (s *Service) Create(ctx context.Context, a *Authorization) error {
	if err := s.validate(a); err != nil {
		return err
	}
	if a.Status == "" {
		a.Status = StatusRequested
	}
	if a.Status != StatusRequested && a.Status != StatusApproved {
		return fmt.Errorf("authorizations are created REQUESTED or APPROVED, got %s", a.Status)
	}

	overlap, err := s.auths.HasOverlapping(ctx, a.ClientID, a.ServiceTypeIDs, a.StartDate, a.EndDate, uuid.Nil)
	if err != nil {
		return err
	}
	if overlap {
		return apperr.Business(apperr.CodeOverlappingAuthorization,
			"client %s already has an authorization covering these service types in this date range", a.ClientID)
	}
	return s.auths.Create(ctx, a)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Authorization, error) {
	return s.auths.GetByID(ctx, id)
}

// Update re-runs the overlap check when client, covered service types, or the
// date range changed.
func (s *Service) Update(ctx context.Context, a *Authorization) error {
	if err := s.validate(a); err != nil {
		return err
	}
	current, err := s.auths.GetByID(ctx, a.ID)
	if err != nil {
		return err
	}

	if coverageChanged(current, a) {
		overlap, err := s.auths.HasOverlapping(ctx, a.ClientID, a.ServiceTypeIDs, a.StartDate, a.EndDate, a.ID)
		if err != nil {
			return err
		}
		if overlap {
			return apperr.Business(apperr.CodeOverlappingAuthorization,
				"client %s already has an authorization covering these service types in this date range", a.ClientID)
		}
	}
	return s.auths.Update(ctx, a)
}

func coverageChanged(old, upd *Authorization) bool {
	if old.ClientID != upd.ClientID || !old.StartDate.Equal(upd.StartDate) {
		return true
	}
	if (old.EndDate == nil) != (upd.EndDate == nil) {
		return true
	}
	if old.EndDate != nil && !old.EndDate.Equal(*upd.EndDate) {
		return true
	}
	if len(old.ServiceTypeIDs) != len(upd.ServiceTypeIDs) {
		return true
	}
	for i := range old.ServiceTypeIDs {
		if old.ServiceTypeIDs[i] != upd.ServiceTypeIDs[i] {
			return true
		}
	}
	return false
}

// UpdateStatus enforces the transition table. Expiring an authorization
// cascades: services it backs that are not fully documented and not yet in a
// claim revert to UNBILLED so they are not silently billed without coverage.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, to Status) (*Authorization, error) {
	var out *Authorization
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.auths.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !CanTransition(a.Status, to) {
			return apperr.Business(apperr.CodeInvalidStatusTransition,
				"authorization cannot move from %s to %s", a.Status, to)
		}
		if err := s.auths.UpdateStatus(ctx, id, to); err != nil {
			return err
		}
		if to == StatusExpired {
			note := fmt.Sprintf("Reverted to UNBILLED: authorization %s expired on %s",
				a.Number, time.Now().UTC().Format("2006-01-02"))
			n, err := s.services.RevertUnderDocumented(ctx, id, note)
			if err != nil {
				return err
			}
			if n > 0 {
				s.logger.Info().
					Str("authorization_id", id.String()).
					Int("reverted_services", n).
					Msg("expiration cascade reverted under-documented services")
			}
		}
		a.Status = to
		out = a
		return nil
	})
	return out, err
}

// Delete is a soft transition to CANCELLED, refused while any non-void
// service still references the authorization.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	n, err := s.services.CountActiveByAuthorization(ctx, id)
	if err != nil {
		return err
	}
	if n > 0 {
		return apperr.Business(apperr.CodeAuthorizationInUse,
			"authorization %s is referenced by %d active services", id, n)
	}
	_, err = s.UpdateStatus(ctx, id, StatusCancelled)
	return err
}

// TrackUtilization is the single entry point for consuming or releasing
// units. The counter mutation and the EXPIRING side effect commit atomically.
func (s *Service) TrackUtilization(ctx context.Context, id uuid.UUID, units int, isAddition bool) (*Authorization, error) {
	if units < 0 {
		return nil, fmt.Errorf("units must not be negative")
	}
	if units == 0 {
		return s.auths.GetByID(ctx, id)
	}

	var out *Authorization
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		a, err := s.auths.TrackUtilization(ctx, id, units, isAddition)
		if err != nil {
			return err
		}
		// The threshold check runs on every mutation: a subtraction that still
		// leaves utilization at or past the threshold flags the authorization
		// too, e.g. after an EXPIRING reset back to ACTIVE.
		if a.Status == StatusActive && a.atExpiringThreshold() {
			if err := s.auths.UpdateStatus(ctx, id, StatusExpiring); err != nil {
				return err
			}
			a.Status = StatusExpiring
			s.logger.Info().
				Str("authorization_id", id.String()).
				Int("used_units", a.UsedUnits).
				Int("authorized_units", a.AuthorizedUnits).
				Msg("authorization crossed utilization threshold")
		}
		out = a
		return nil
	})
	return out, err
}

// CheckOverlappingAuthorizations reports double coverage for a client across
// the given service types and date range.
func (s *Service) CheckOverlappingAuthorizations(ctx context.Context, clientID uuid.UUID, serviceTypeIDs []string, start time.Time, end *time.Time, excludeID uuid.UUID) (bool, error) {
	return s.auths.HasOverlapping(ctx, clientID, serviceTypeIDs, start, end, excludeID)
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Authorization, int, error) {
	return s.auths.ListByClient(ctx, clientID, limit, offset)
}
