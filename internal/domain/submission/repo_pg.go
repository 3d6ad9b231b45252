package submission

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

func (r *repoPG) Create(ctx context.Context, a *Attempt) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO submission_attempts (id, claim_id, method, format, success,
			tracking_id, external_claim_id, errors)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		a.ID, a.ClaimID, a.Method, a.Format, a.Success,
		a.TrackingID, a.ExternalClaimID, a.Errors)
	return err
}

func (r *repoPG) ListByClaim(ctx context.Context, claimID uuid.UUID) ([]*Attempt, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, claim_id, method, format, success, tracking_id, external_claim_id, errors, created_at
		FROM submission_attempts WHERE claim_id = $1 ORDER BY created_at`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Attempt
	for rows.Next() {
		var a Attempt
		if err := rows.Scan(&a.ID, &a.ClaimID, &a.Method, &a.Format, &a.Success,
			&a.TrackingID, &a.ExternalClaimID, &a.Errors, &a.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &a)
	}
	return items, rows.Err()
}
