package authorization

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

const authCols = `id, client_id, program_id, authorization_number, status,
	start_date, end_date, authorized_units, used_units, service_type_ids,
	notes, issued_by, issued_at, created_at, updated_at`

func scanAuth(row pgx.Row) (*Authorization, error) {
	var a Authorization
	err := row.Scan(&a.ID, &a.ClientID, &a.ProgramID, &a.Number, &a.Status,
		&a.StartDate, &a.EndDate, &a.AuthorizedUnits, &a.UsedUnits, &a.ServiceTypeIDs,
		&a.Notes, &a.IssuedBy, &a.IssuedAt, &a.CreatedAt, &a.UpdatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Authorization) error {
	a.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO authorizations (id, client_id, program_id, authorization_number, status,
			start_date, end_date, authorized_units, used_units, service_type_ids,
			notes, issued_by, issued_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,0,$9,$10,$11,$12)`,
		a.ID, a.ClientID, a.ProgramID, a.Number, a.Status,
		a.StartDate, a.EndDate, a.AuthorizedUnits, a.ServiceTypeIDs,
		a.Notes, a.IssuedBy, a.IssuedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return apperr.Business(apperr.CodeDuplicateAuthorization,
			"authorization number %s already exists", a.Number)
	}
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Authorization, error) {
	a, err := scanAuth(r.conn(ctx).QueryRow(ctx, `SELECT `+authCols+` FROM authorizations WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("authorization", id.String())
	}
	return a, err
}

func (r *repoPG) Update(ctx context.Context, a *Authorization) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE authorizations SET client_id=$2, program_id=$3, authorization_number=$4,
			start_date=$5, end_date=$6, authorized_units=$7, service_type_ids=$8,
			notes=$9, issued_by=$10, issued_at=$11, updated_at=NOW()
		WHERE id = $1`,
		a.ID, a.ClientID, a.ProgramID, a.Number,
		a.StartDate, a.EndDate, a.AuthorizedUnits, a.ServiceTypeIDs,
		a.Notes, a.IssuedBy, a.IssuedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return apperr.Business(apperr.CodeDuplicateAuthorization,
				"authorization number %s already exists", a.Number)
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("authorization", a.ID.String())
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE authorizations SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("authorization", id.String())
	}
	return nil
}

// TrackUtilization relies on a single guarded UPDATE so two concurrent
// additions can never both commit past the authorized limit; the check
// constraint on used_units backstops the guard.
func (r *repoPG) TrackUtilization(ctx context.Context, id uuid.UUID, units int, isAddition bool) (*Authorization, error) {
	if isAddition {
		a, err := scanAuth(r.conn(ctx).QueryRow(ctx, `
			UPDATE authorizations
			SET used_units = used_units + $2, updated_at = NOW()
			WHERE id = $1 AND used_units + $2 <= authorized_units
			RETURNING `+authCols, id, units))
		if err == pgx.ErrNoRows {
			current, gerr := r.GetByID(ctx, id)
			if gerr != nil {
				return nil, gerr
			}
			return nil, apperr.Business(apperr.CodeExceedsAuthorizedUnits,
				"authorization %s has %d of %d units used; adding %d exceeds the limit",
				id, current.UsedUnits, current.AuthorizedUnits, units)
		}
		return a, err
	}

	a, err := scanAuth(r.conn(ctx).QueryRow(ctx, `
		UPDATE authorizations
		SET used_units = GREATEST(used_units - $2, 0), updated_at = NOW()
		WHERE id = $1
		RETURNING `+authCols, id, units))
	if err == pgx.ErrNoRows {
		return nil, apperr.NotFound("authorization", id.String())
	}
	return a, err
}

func (r *repoPG) HasOverlapping(ctx context.Context, clientID uuid.UUID, serviceTypeIDs []string, start time.Time, end *time.Time, excludeID uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM authorizations
			WHERE client_id = $1
				AND id <> $2
				AND status <> $3
				AND service_type_ids && $4
				AND ($6::date IS NULL OR start_date <= $6)
				AND (end_date IS NULL OR end_date >= $5)
		)`,
		clientID, excludeID, StatusCancelled, serviceTypeIDs, start, end).Scan(&exists)
	return exists, err
}

func (r *repoPG) ListByClient(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*Authorization, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM authorizations WHERE client_id = $1`, clientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+authCols+` FROM authorizations WHERE client_id = $1 ORDER BY start_date DESC LIMIT $2 OFFSET $3`, clientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Authorization
	for rows.Next() {
		a, err := scanAuth(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, a)
	}
	return items, total, nil
}

func (r *repoPG) ListActiveByClient(ctx context.Context, clientID uuid.UUID) ([]*Authorization, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+authCols+` FROM authorizations
		WHERE client_id = $1 AND status IN ($2, $3)
		ORDER BY start_date`, clientID, StatusActive, StatusExpiring)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Authorization
	for rows.Next() {
		a, err := scanAuth(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}
