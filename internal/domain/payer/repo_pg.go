package payer

import (
	"context"

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

const payerCols = `id, name, payer_identifier, submission_method,
	default_claim_type, billing_format, accepts_electronic, filing_deadline_days,
	active, notes, created_at, updated_at`

func scanPayer(row pgx.Row) (*Payer, error) {
	var p Payer
	err := row.Scan(&p.ID, &p.Name, &p.PayerIdentifier, &p.SubmissionMethod,
		&p.Requirements.DefaultClaimType, &p.Requirements.BillingFormat,
		&p.Requirements.AcceptsElectronic, &p.Requirements.FilingDeadlineDays,
		&p.Active, &p.Notes, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Payer) error {
	p.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO payers (id, name, payer_identifier, submission_method,
			default_claim_type, billing_format, accepts_electronic, filing_deadline_days,
			active, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.Name, p.PayerIdentifier, p.SubmissionMethod,
		p.Requirements.DefaultClaimType, p.Requirements.BillingFormat,
		p.Requirements.AcceptsElectronic, p.Requirements.FilingDeadlineDays,
		p.Active, p.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Payer, error) {
	p, err := scanPayer(r.conn(ctx).QueryRow(ctx, `SELECT `+payerCols+` FROM payers WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("payer", id.String())
	}
	return p, err
}

func (r *repoPG) Update(ctx context.Context, p *Payer) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE payers SET name=$2, payer_identifier=$3, submission_method=$4,
			default_claim_type=$5, billing_format=$6, accepts_electronic=$7,
			filing_deadline_days=$8, active=$9, notes=$10, updated_at=NOW()
		WHERE id = $1`,
		p.ID, p.Name, p.PayerIdentifier, p.SubmissionMethod,
		p.Requirements.DefaultClaimType, p.Requirements.BillingFormat,
		p.Requirements.AcceptsElectronic, p.Requirements.FilingDeadlineDays,
		p.Active, p.Notes)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Payer, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM payers`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+payerCols+` FROM payers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Payer
	for rows.Next() {
		p, err := scanPayer(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, p)
	}
	return items, total, nil
}
