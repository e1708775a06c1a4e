// AngelaMos | 2026
// repository.go

package tfg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
)

type Repository struct {
	db core.DBTX
}

var (
	_ entity.Store[TFG]   = (*Repository)(nil)
	_ entity.UsageChecker = (*Repository)(nil)
	_ Store               = (*Repository)(nil)
)

func NewRepository(db core.DBTX) *Repository {
	return &Repository{db: db}
}

const selectTFG = `
	SELECT t.id, t.year_id, t.degree_id, t.advisor_id,
		COALESCE(y.year, '') AS year,
		COALESCE(d.degree, '') AS degree,
		COALESCE(a.advisor, '') AS advisor,
		t.student, t.title, t.keywords, t.link, t.abstract,
		t.verified, t.verified_by, t.reason, t.views, t.download_count,
		t.created_by, t.created_at, t.updated_at, t.deleted_at
	FROM tfgs t
	LEFT JOIN years y ON y.id = t.year_id
	LEFT JOIN degrees d ON d.id = t.degree_id
	LEFT JOIN advisors a ON a.id = t.advisor_id`

func (r *Repository) FindActive(
	ctx context.Context,
	filter entity.ListFilter,
) ([]TFG, error) {
	var f Filter
	if filter.Active != nil {
		f.Verified = filter.Active
	}
	return r.List(ctx, f)
}

func (r *Repository) FindByID(ctx context.Context, id string) (*TFG, error) {
	return r.get(ctx, "find tfg",
		selectTFG+` WHERE t.id = $1 AND t.deleted_at IS NULL`, id)
}

func (r *Repository) FindIncludingDeleted(ctx context.Context, id string) (*TFG, error) {
	return r.get(ctx, "find tfg", selectTFG+` WHERE t.id = $1`, id)
}

func (r *Repository) get(
	ctx context.Context,
	op, query string,
	args ...any,
) (*TFG, error) {
	var t TFG
	err := core.Conn(ctx, r.db).GetContext(ctx, &t, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, core.MapPgError(err))
	}

	return &t, nil
}

var matchColumns = map[string]string{
	"student": "t.student",
	"title":   "t.title",
	"link":    "t.link",
}

func (r *Repository) where(m entity.Match) (string, any, error) {
	if m.Field == "id" {
		return "t.id = $1", m.Value, nil
	}

	column, ok := matchColumns[m.Field]
	if !ok {
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

func (r *Repository) FindOne(ctx context.Context, m entity.Match) (*TFG, error) {
	cond, arg, err := r.where(m)
	if err != nil {
		return nil, err
	}

	return r.get(ctx, "find tfg by "+m.Field,
		selectTFG+` WHERE t.deleted_at IS NULL AND `+cond+` ORDER BY t.created_at LIMIT 1`,
		arg)
}

func (r *Repository) FindMany(ctx context.Context, m entity.Match) ([]TFG, error) {
	cond, arg, err := r.where(m)
	if err != nil {
		return nil, err
	}

	var items []TFG
	query := selectTFG + ` WHERE t.deleted_at IS NULL AND ` + cond + ` ORDER BY t.created_at DESC, t.id`
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &items, query, arg); err != nil {
		return nil, fmt.Errorf("search tfgs: %w", core.MapPgError(err))
	}
	return items, nil
}

func (r *Repository) Create(ctx context.Context, t *TFG) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Link == "" {
		t.Link = NoLink
	}

	query := `
		INSERT INTO tfgs (
			id, year_id, degree_id, advisor_id, student, title, keywords,
			link, abstract, verified, verified_by, reason, created_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING views, download_count, created_at, updated_at`

	err := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		t.ID, t.YearID, t.DegreeID, t.AdvisorID, t.Student, t.Title, t.Keywords,
		t.Link, t.Abstract, t.Verified, t.VerifiedBy, t.Reason, t.CreatedBy,
	).Scan(&t.Views, &t.DownloadCount, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create tfg: %w", core.MapPgError(err))
	}

	return nil
}

// Update writes the editable columns. Counters are only changed through the
// increment methods so a concurrent view is never lost.
func (r *Repository) Update(ctx context.Context, t *TFG) error {
	query := `
		UPDATE tfgs
		SET year_id = $2, degree_id = $3, advisor_id = $4, student = $5,
			title = $6, keywords = $7, link = $8, abstract = $9,
			verified = $10, verified_by = $11, reason = $12, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING views, download_count, updated_at`

	err := core.Conn(ctx, r.db).QueryRowxContext(ctx, query,
		t.ID, t.YearID, t.DegreeID, t.AdvisorID, t.Student, t.Title, t.Keywords,
		t.Link, t.Abstract, t.Verified, t.VerifiedBy, t.Reason,
	).Scan(&t.Views, &t.DownloadCount, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update tfg: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update tfg: %w", core.MapPgError(err))
	}

	return nil
}

func (r *Repository) SoftDelete(ctx context.Context, id string) error {
	query := `
		UPDATE tfgs
		SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`

	return r.execOne(ctx, "delete tfg", query, id)
}

func (r *Repository) Lock(ctx context.Context, id string, mode entity.LockMode) error {
	clause := "FOR SHARE"
	if mode == entity.LockExclusive {
		clause = "FOR UPDATE"
	}

	var locked string
	err := core.Conn(ctx, r.db).GetContext(ctx, &locked,
		`SELECT id FROM tfgs WHERE id = $1 AND deleted_at IS NULL `+clause, id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock tfg: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lock tfg: %w", core.MapPgError(err))
	}

	return nil
}

var referenceColumns = map[entity.Kind]string{
	entity.KindYear:    "year_id",
	entity.KindDegree:  "degree_id",
	entity.KindAdvisor: "advisor_id",
}

// CountReferences counts live theses pointing at a reference entity.
func (r *Repository) CountReferences(
	ctx context.Context,
	kind entity.Kind,
	id string,
) (int, error) {
	column, ok := referenceColumns[kind]
	if !ok {
		return 0, core.Ef(core.CodeInvalidEntityName, "theses do not reference %s", kind)
	}

	var n int
	err := core.Conn(ctx, r.db).GetContext(ctx, &n,
		`SELECT COUNT(*) FROM tfgs WHERE deleted_at IS NULL AND `+column+` = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("count tfgs by %s: %w", kind, core.MapPgError(err))
	}
	return n, nil
}

// filterClause renders f starting at placeholder $1.
func filterClause(f Filter) (string, []any) {
	conds := []string{"t.deleted_at IS NULL"}
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.YearID != "" {
		add("t.year_id = $%d", f.YearID)
	}
	if f.DegreeID != "" {
		add("t.degree_id = $%d", f.DegreeID)
	}
	if f.AdvisorID != "" {
		add("t.advisor_id = $%d", f.AdvisorID)
	}
	if f.Verified != nil {
		add("t.verified = $%d", *f.Verified)
	}

	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+core.EscapeLike(search)+"%")
		like := len(args)
		args = append(args, strings.Fields(search))
		tokens := len(args)

		conds = append(conds, fmt.Sprintf(
			`(t.student ILIKE $%[1]d ESCAPE '\' OR t.title ILIKE $%[1]d ESCAPE '\'`+
				` OR t.abstract ILIKE $%[1]d ESCAPE '\' OR t.keywords ?| $%[2]d::text[])`,
			like, tokens,
		))
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

// Page returns one page of matching theses, newest first, and the total
// number of matches.
func (r *Repository) Page(
	ctx context.Context,
	f Filter,
	limit, offset int,
) ([]TFG, int, error) {
	where, args := filterClause(f)
	conn := core.Conn(ctx, r.db)

	var total int
	if err := conn.GetContext(ctx, &total, `SELECT COUNT(*) FROM tfgs t`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count tfgs: %w", core.MapPgError(err))
	}

	query := selectTFG + where + fmt.Sprintf(
		` ORDER BY t.created_at DESC, t.id ASC LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2,
	)

	var items []TFG
	if err := conn.SelectContext(ctx, &items, query, append(args, limit, offset)...); err != nil {
		return nil, 0, fmt.Errorf("list tfgs: %w", core.MapPgError(err))
	}

	return items, total, nil
}

func (r *Repository) List(ctx context.Context, f Filter) ([]TFG, error) {
	where, args := filterClause(f)

	var items []TFG
	query := selectTFG + where + ` ORDER BY t.created_at DESC, t.id ASC`
	if err := core.Conn(ctx, r.db).SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list tfgs: %w", core.MapPgError(err))
	}
	return items, nil
}

func (r *Repository) Names(ctx context.Context) ([]Name, error) {
	var names []Name
	err := core.Conn(ctx, r.db).SelectContext(ctx, &names, `
		SELECT id, title FROM tfgs
		WHERE deleted_at IS NULL AND verified
		ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tfg names: %w", core.MapPgError(err))
	}
	return names, nil
}

func (r *Repository) IncrementViews(ctx context.Context, id string) error {
	return r.execOne(ctx, "increment views",
		`UPDATE tfgs SET views = views + 1 WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *Repository) IncrementDownloads(ctx context.Context, id string) error {
	return r.execOne(ctx, "increment downloads",
		`UPDATE tfgs SET download_count = download_count + 1 WHERE id = $1 AND deleted_at IS NULL`, id)
}

func (r *Repository) execOne(ctx context.Context, op, query string, args ...any) error {
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

func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var s Stats
	err := core.Conn(ctx, r.db).GetContext(ctx, &s, `
		SELECT
			COUNT(*) FILTER (WHERE deleted_at IS NULL) AS total,
			COUNT(*) FILTER (WHERE deleted_at IS NULL AND verified) AS verified,
			COUNT(*) FILTER (WHERE deleted_at IS NULL AND NOT verified) AS unverified,
			COUNT(*) FILTER (WHERE deleted_at IS NULL AND link <> 'undefined') AS with_file,
			COUNT(*) FILTER (WHERE deleted_at IS NOT NULL) AS deleted,
			COALESCE(SUM(views) FILTER (WHERE deleted_at IS NULL), 0) AS views,
			COALESCE(SUM(download_count) FILTER (WHERE deleted_at IS NULL), 0) AS downloads
		FROM tfgs`)
	if err != nil {
		return Stats{}, fmt.Errorf("tfg stats: %w", core.MapPgError(err))
	}
	return s, nil
}
