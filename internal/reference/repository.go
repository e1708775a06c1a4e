// AngelaMos | 2026
// repository.go

package reference

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
)

// Repository stores one reference kind in its own table, e.g. kind "year"
// lives in table years with label column year.
type Repository struct {
	db     core.DBTX
	table  string
	column string
}

var _ entity.Store[Reference] = (*Repository)(nil)

func NewRepository(db core.DBTX, kind entity.Kind) *Repository {
	return &Repository{
		db:     db,
		table:  string(kind) + "s",
		column: string(kind),
	}
}

func (r *Repository) selectClause() string {
	return fmt.Sprintf(
		`SELECT id, %s AS label, active, created_at, updated_at, deleted_at FROM %s`,
		r.column, r.table,
	)
}

func (r *Repository) FindActive(
	ctx context.Context,
	filter entity.ListFilter,
) ([]Reference, error) {
	query := r.selectClause() + ` WHERE deleted_at IS NULL AND ` + r.column + ` IS NOT NULL`
	var args []any

	if filter.Active != nil {
		query += ` AND active = $1`
		args = append(args, *filter.Active)
	}
	query += ` ORDER BY ` + r.column + ` ASC`

	var items []Reference
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list %s: %w", r.table, core.MapPgError(err))
	}

	return items, nil
}

func (r *Repository) FindByID(ctx context.Context, id string) (*Reference, error) {
	return r.get(ctx, "find "+r.table,
		r.selectClause()+` WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *Repository) FindIncludingDeleted(
	ctx context.Context,
	id string,
) (*Reference, error) {
	return r.get(ctx, "find "+r.table, r.selectClause()+` WHERE id = $1`, id)
}

func (r *Repository) get(
	ctx context.Context,
	op, query string,
	args ...any,
) (*Reference, error) {
	var item Reference
	err := core.Conn(ctx, r.db).GetContext(ctx, &item, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, core.MapPgError(err))
	}

	return &item, nil
}

func (r *Repository) where(m entity.Match) (string, any, error) {
	column := m.Field
	switch m.Field {
	case "id":
		return "id = $1", m.Value, nil
	case "label", r.column:
		column = r.column
	default:
		return "", nil, &core.FieldViolation{Field: m.Field, Message: "unknown field"}
	}

	switch m.Mode {
	case entity.MatchExact:
		return column + " = $1", m.Value, nil
	case entity.MatchCaseInsensitive:
		return "LOWER(" + column + ") = LOWER($1)", m.Value, nil
	case entity.MatchSubstring:
		return column + ` LIKE $1 ESCAPE '\'`, "%" + core.EscapeLike(m.Value) + "%", nil
	default:
		return column + ` ILIKE $1 ESCAPE '\'`, "%" + core.EscapeLike(m.Value) + "%", nil
	}
}

func (r *Repository) FindOne(ctx context.Context, m entity.Match) (*Reference, error) {
	cond, arg, err := r.where(m)
	if err != nil {
		return nil, err
	}

	return r.get(ctx, "find "+r.table+" by "+m.Field,
		r.selectClause()+` WHERE deleted_at IS NULL AND `+cond+` ORDER BY created_at LIMIT 1`,
		arg)
}

func (r *Repository) FindMany(ctx context.Context, m entity.Match) ([]Reference, error) {
	cond, arg, err := r.where(m)
	if err != nil {
		return nil, err
	}

	query := r.selectClause() + ` WHERE deleted_at IS NULL AND ` + cond +
		` ORDER BY ` + r.column + ` ASC`

	var items []Reference
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &items, query, arg); err != nil {
		return nil, fmt.Errorf("search %s: %w", r.table, core.MapPgError(err))
	}

	return items, nil
}

func (r *Repository) Create(ctx context.Context, item *Reference) error {
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, %s, active)
		VALUES ($1, $2, $3)
		RETURNING created_at, updated_at`, r.table, r.column)

	err := core.Conn(ctx, r.db).
		QueryRowxContext(ctx, query, item.ID, item.Label, item.Active).
		Scan(&item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create %s: %w", r.table, core.MapPgError(err))
	}

	return nil
}

func (r *Repository) Update(ctx context.Context, item *Reference) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET %s = $2, active = $3, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`, r.table, r.column)

	err := core.Conn(ctx, r.db).
		QueryRowxContext(ctx, query, item.ID, item.Label, item.Active).
		Scan(&item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update %s: %w", r.table, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", r.table, core.MapPgError(err))
	}

	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, r.table)

	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.table, core.MapPgError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.table, err)
	}

	if rows == 0 {
		return fmt.Errorf("delete %s: %w", r.table, core.ErrNotFound)
	}

	return nil
}

func (r *Repository) Lock(ctx context.Context, id string, mode entity.LockMode) error {
	clause := "FOR SHARE"
	if mode == entity.LockExclusive {
		clause = "FOR UPDATE"
	}

	query := fmt.Sprintf(
		`SELECT id FROM %s WHERE id = $1 AND deleted_at IS NULL %s`,
		r.table, clause,
	)

	var locked string
	err := core.Conn(ctx, r.db).GetContext(ctx, &locked, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock %s: %w", r.table, core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock %s: %w", r.table, core.MapPgError(err))
	}

	return nil
}

type Counts struct {
	Total  int `db:"total"`
	Active int `db:"active"`
}

func (r *Repository) Counts(ctx context.Context) (Counts, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE active) AS active
		FROM %s WHERE deleted_at IS NULL`, r.table)

	var c Counts
	if err := core.Conn(ctx, r.db).GetContext(ctx, &c, query); err != nil {
		return Counts{}, fmt.Errorf("count %s: %w", r.table, err)
	}
	return c, nil
}
