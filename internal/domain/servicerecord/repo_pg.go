package servicerecord

import (
	"context"
	"fmt"

	"github.com/google/uuid"
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

const serviceCols = `id, client_id, service_type_id, service_date, units, amount,
	documentation_status, billing_status, authorization_id, claim_id, notes,
	created_at, updated_at`

func scanService(row pgx.Row) (*ServiceRecord, error) {
	var s ServiceRecord
	err := row.Scan(&s.ID, &s.ClientID, &s.ServiceTypeID, &s.ServiceDate, &s.Units, &s.Amount,
		&s.DocStatus, &s.BillingStatus, &s.AuthorizationID, &s.ClaimID, &s.Notes,
		&s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func (r *repoPG) Create(ctx context.Context, s *ServiceRecord) error {
	s.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO service_records (id, client_id, service_type_id, service_date, units, amount,
			documentation_status, billing_status, authorization_id, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.ClientID, s.ServiceTypeID, s.ServiceDate, s.Units, s.Amount,
		s.DocStatus, s.BillingStatus, s.AuthorizationID, s.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*ServiceRecord, error) {
	s, err := scanService(r.conn(ctx).QueryRow(ctx, `SELECT `+serviceCols+` FROM service_records WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("service", id.String())
	}
	return s, err
}

func (r *repoPG) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*ServiceRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM service_records WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ServiceRecord
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) Update(ctx context.Context, s *ServiceRecord) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_records SET service_type_id=$2, service_date=$3, units=$4, amount=$5,
			documentation_status=$6, billing_status=$7, authorization_id=$8, notes=$9, updated_at=NOW()
		WHERE id = $1`,
		s.ID, s.ServiceTypeID, s.ServiceDate, s.Units, s.Amount,
		s.DocStatus, s.BillingStatus, s.AuthorizationID, s.Notes)
	return err
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*ServiceRecord, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM service_records WHERE client_id = $1`, clientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM service_records WHERE client_id = $1 ORDER BY service_date DESC LIMIT $2 OFFSET $3`, clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*ServiceRecord
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, s)
	}
	return items, total, nil
}

func (r *repoPG) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*ServiceRecord, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+serviceCols+` FROM service_records WHERE claim_id = $1 ORDER BY service_date`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ServiceRecord
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

func (r *repoPG) AttachToClaim(ctx context.Context, serviceID, claimID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_records SET billing_status = $3, claim_id = $2, updated_at = NOW()
		WHERE id = $1 AND billing_status = $4 AND claim_id IS NULL`,
		serviceID, claimID, BillingInClaim, BillingReadyForBilling)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("service %s is not attachable", serviceID)
	}
	return nil
}

func (r *repoPG) SetBillingStatus(ctx context.Context, serviceID uuid.UUID, status BillingStatus) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_records SET billing_status = $2, updated_at = NOW() WHERE id = $1`,
		serviceID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("service", serviceID.String())
	}
	return nil
}

func (r *repoPG) DetachFromClaim(ctx context.Context, claimID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_records
		SET billing_status = $2, claim_id = NULL, updated_at = NOW()
		WHERE claim_id = $1 AND billing_status = $3`,
		claimID, BillingReadyForBilling, BillingInClaim)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) RevertUnderDocumented(ctx context.Context, authorizationID uuid.UUID, note string) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE service_records
		SET billing_status = $2,
			notes = COALESCE(notes || E'\n', '') || $3,
			updated_at = NOW()
		WHERE authorization_id = $1
			AND documentation_status IN ($4, $5)
			AND billing_status IN ($6, $7)`,
		authorizationID, BillingUnbilled, note,
		DocIncomplete, DocPendingReview,
		BillingUnbilled, BillingReadyForBilling)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) CountActiveByAuthorization(ctx context.Context, authorizationID uuid.UUID) (int, error) {
	var n int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM service_records
		WHERE authorization_id = $1 AND billing_status <> $2`,
		authorizationID, BillingVoid).Scan(&n)
	return n, err
}
