// AngelaMos | 2026
// repository.go

package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/carterperez-dev/tfg-registry/internal/core"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	Update(ctx context.Context, user *User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateRole(ctx context.Context, id, role string) error
	// IncrementAttempts bumps the counter atomically and returns the new
	// value, so concurrent failures are all counted.
	IncrementAttempts(ctx context.Context, id string) (int, error)
	ResetAttempts(ctx context.Context, id string) error
	// SetCode stores a code hash (nil clears it) and resets the attempts.
	SetCode(ctx context.Context, id string, codeHash *string) error
	ClearCode(ctx context.Context, id string) error
	MarkValidated(ctx context.Context, id string) error
	SoftDelete(ctx context.Context, id string) error
	List(ctx context.Context, params ListUsersParams) ([]User, int, error)
	Counts(ctx context.Context, lockAt int) (Counts, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const userColumns = `
	id, name, email, password_hash, role, validated, attempts,
	verification_code, created_at, updated_at, deleted_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, role, validated, verification_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING attempts, created_at, updated_at`

	err := core.Conn(ctx, r.db).GetContext(ctx, user, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.Validated,
		user.VerificationCode,
	)
	if err != nil {
		return fmt.Errorf("create user: %w", core.MapPgError(err))
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL`

	return r.getOne(ctx, "get user", query, id)
}

// GetByEmail matches case-insensitively, like the unique index.
func (r *repository) GetByEmail(
	ctx context.Context,
	email string,
) (*User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE LOWER(email) = LOWER($1) AND deleted_at IS NULL`

	return r.getOne(ctx, "get user by email", query, strings.TrimSpace(email))
}

func (r *repository) getOne(
	ctx context.Context,
	op, query string,
	args ...any,
) (*User, error) {
	var user User
	err := core.Conn(ctx, r.db).GetContext(ctx, &user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, core.MapPgError(err))
	}

	return &user, nil
}

func (r *repository) Update(ctx context.Context, user *User) error {
	query := `
		UPDATE users
		SET name = $2, email = $3, password_hash = $4, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING updated_at`

	err := core.Conn(ctx, r.db).GetContext(ctx, &user.UpdatedAt, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update user: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update user: %w", core.MapPgError(err))
	}

	return nil
}

// UpdatePassword also clears any pending code and the attempts.
func (r *repository) UpdatePassword(
	ctx context.Context,
	id, passwordHash string,
) error {
	return r.exec(ctx, "update password", `
		UPDATE users
		SET password_hash = $2, verification_code = NULL, attempts = 0,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, passwordHash)
}

func (r *repository) UpdateRole(ctx context.Context, id, role string) error {
	return r.exec(ctx, "update role", `
		UPDATE users
		SET role = $2, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, role)
}

func (r *repository) IncrementAttempts(
	ctx context.Context,
	id string,
) (int, error) {
	query := `
		UPDATE users
		SET attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING attempts`

	var attempts int
	err := core.Conn(ctx, r.db).GetContext(ctx, &attempts, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("increment attempts: %w", core.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment attempts: %w", core.MapPgError(err))
	}

	return attempts, nil
}

func (r *repository) ResetAttempts(ctx context.Context, id string) error {
	return r.exec(ctx, "reset attempts", `
		UPDATE users
		SET attempts = 0, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repository) SetCode(
	ctx context.Context,
	id string,
	codeHash *string,
) error {
	return r.exec(ctx, "set code", `
		UPDATE users
		SET verification_code = $2, attempts = 0, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id, codeHash)
}

func (r *repository) ClearCode(ctx context.Context, id string) error {
	return r.exec(ctx, "clear code", `
		UPDATE users
		SET verification_code = NULL, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repository) MarkValidated(ctx context.Context, id string) error {
	return r.exec(ctx, "mark validated", `
		UPDATE users
		SET validated = TRUE, verification_code = NULL, attempts = 0,
		    updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repository) SoftDelete(ctx context.Context, id string) error {
	return r.exec(ctx, "delete user", `
		UPDATE users
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *repository) exec(
	ctx context.Context,
	op, query string,
	args ...any,
) error {
	result, err := core.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, core.MapPgError(err))
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	params.Normalize()

	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, "deleted_at IS NULL")

	if params.Search != "" {
		conditions = append(conditions, fmt.Sprintf(
			"(email ILIKE $%d ESCAPE '\\' OR name ILIKE $%d ESCAPE '\\')",
			argIdx, argIdx))
		args = append(args, "%"+core.EscapeLike(params.Search)+"%")
		argIdx++
	}

	if params.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", argIdx))
		args = append(args, params.Role)
		argIdx++
	}

	if params.Validated != nil {
		conditions = append(conditions, fmt.Sprintf("validated = $%d", argIdx))
		args = append(args, *params.Validated)
		argIdx++
	}

	whereClause := strings.Join(conditions, " AND ")
	db := core.Conn(ctx, r.db)

	countQuery := fmt.Sprintf(
		"SELECT COUNT(*) FROM users WHERE %s",
		whereClause,
	)
	var total int
	if err := db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", core.MapPgError(err))
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM users
		WHERE %s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d`,
		userColumns, whereClause, argIdx, argIdx+1)

	args = append(args, params.PageSize, params.Offset())

	var users []User
	if err := db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list users: %w", core.MapPgError(err))
	}

	return users, total, nil
}

func (r *repository) Counts(ctx context.Context, lockAt int) (Counts, error) {
	query := `
		SELECT
			COUNT(*)                                     AS total,
			COUNT(*) FILTER (WHERE validated)            AS validated,
			COUNT(*) FILTER (WHERE attempts >= $1)       AS locked,
			COUNT(*) FILTER (WHERE role = 'administrador') AS admins,
			COUNT(*) FILTER (WHERE role = 'coordinador') AS coordinators,
			COUNT(*) FILTER (WHERE role = 'usuario')     AS users
		FROM users
		WHERE deleted_at IS NULL`

	var c Counts
	if err := core.Conn(ctx, r.db).GetContext(ctx, &c, query, lockAt); err != nil {
		return Counts{}, fmt.Errorf("count users: %w", core.MapPgError(err))
	}

	return c, nil
}
