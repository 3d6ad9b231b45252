package claim

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hcbs/hcbs/internal/platform/apperr"
	"github.com/hcbs/hcbs/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const claimCols = `id, client_id, payer_id, claim_kind, claim_type, billing_format, status,
	service_start_date, service_end_date, total_amount,
	submission_method, submission_date, tracking_id, external_claim_id,
	notes, created_at, updated_at`

func scanClaim(row pgx.Row) (*Claim, error) {
	var c Claim
	err := row.Scan(&c.ID, &c.ClientID, &c.PayerID, &c.Type, &c.ClaimType, &c.BillingFormat, &c.Status,
		&c.ServiceStartDate, &c.ServiceEndDate, &c.TotalAmount,
		&c.SubmissionMethod, &c.SubmissionDate, &c.TrackingID, &c.ExternalClaimID,
		&c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Claim) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO claims (id, client_id, payer_id, claim_kind, claim_type, billing_format, status,
			service_start_date, service_end_date, total_amount, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		c.ID, c.ClientID, c.PayerID, c.Type, c.ClaimType, c.BillingFormat, c.Status,
		c.ServiceStartDate, c.ServiceEndDate, c.TotalAmount, c.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Claim, error) {
	c, err := scanClaim(r.conn(ctx).QueryRow(ctx, `SELECT `+claimCols+` FROM claims WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("claim", id.String())
	}
	return c, err
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Claim, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+claimCols+` FROM claims WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Claim, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM claims WHERE client_id = $1`, clientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+claimCols+` FROM claims WHERE client_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`, clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, rows.Err()
}

// AddService maps a unique violation to invalid-service-status: the service is
// already a member of a claim.
func (r *repoPG) AddService(ctx context.Context, claimID, serviceID uuid.UUID, sequence int) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO claim_services (claim_id, service_id, sequence)
		VALUES ($1,$2,$3)`, claimID, serviceID, sequence)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperr.Business(apperr.CodeInvalidServiceStatus,
			"service %s already belongs to a claim", serviceID)
	}
	return err
}

func (r *repoPG) RemoveServices(ctx context.Context, claimID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM claim_services WHERE claim_id = $1`, claimID)
	return err
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE claims SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("claim", id.String())
	}
	return nil
}

func (r *repoPG) RecordSubmission(ctx context.Context, id uuid.UUID, method string, date time.Time, trackingID, externalClaimID *string) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE claims
		SET submission_method = $2, submission_date = $3,
			tracking_id = $4, external_claim_id = $5, updated_at = NOW()
		WHERE id = $1`, id, method, date, trackingID, externalClaimID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("claim", id.String())
	}
	return nil
}

func (r *repoPG) AppendStatusHistory(ctx context.Context, h *StatusChange) error {
	h.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO claim_status_history (id, claim_id, from_status, to_status, note)
		VALUES ($1,$2,$3,$4,$5)`,
		h.ID, h.ClaimID, h.FromStatus, h.ToStatus, h.Note)
	return err
}

func (r *repoPG) ListStatusHistory(ctx context.Context, claimID uuid.UUID) ([]*StatusChange, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, claim_id, from_status, to_status, note, created_at
		FROM claim_status_history WHERE claim_id = $1 ORDER BY created_at`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*StatusChange
	for rows.Next() {
		var h StatusChange
		if err := rows.Scan(&h.ID, &h.ClaimID, &h.FromStatus, &h.ToStatus, &h.Note, &h.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &h)
	}
	return items, rows.Err()
}
