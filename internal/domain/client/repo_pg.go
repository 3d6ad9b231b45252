package client

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

const clientCols = `id, first_name, last_name, date_of_birth, medicaid_id, status, notes, created_at, updated_at`

func scanClient(row pgx.Row) (*Client, error) {
	var c Client
	err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.DateOfBirth, &c.MedicaidID,
		&c.Status, &c.Notes, &c.CreatedAt, &c.UpdatedAt)
	return &c, err
}

func (r *repoPG) Create(ctx context.Context, c *Client) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO clients (id, first_name, last_name, date_of_birth, medicaid_id, status, notes)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		c.ID, c.FirstName, c.LastName, c.DateOfBirth, c.MedicaidID, c.Status, c.Notes)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	c, err := scanClient(r.conn(ctx).QueryRow(ctx, `SELECT `+clientCols+` FROM clients WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("client", id.String())
	}
	return c, err
}

func (r *repoPG) Update(ctx context.Context, c *Client) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE clients SET first_name=$2, last_name=$3, date_of_birth=$4, medicaid_id=$5,
			status=$6, notes=$7, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.FirstName, c.LastName, c.DateOfBirth, c.MedicaidID, c.Status, c.Notes)
	return err
}

func (r *repoPG) List(ctx context.Context, limit, offset int) ([]*Client, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM clients`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+clientCols+` FROM clients ORDER BY last_name, first_name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}
