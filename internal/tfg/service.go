// AngelaMos | 2026
// service.go

package tfg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/tfg-registry/internal/config"
	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
	"github.com/carterperez-dev/tfg-registry/internal/storage"
)

// Store is the thesis persistence contract: the generic store plus the
// listing, counter and usage queries only theses need.
type Store interface {
	entity.Store[TFG]
	entity.UsageChecker
	Page(ctx context.Context, f Filter, limit, offset int) ([]TFG, int, error)
	List(ctx context.Context, f Filter) ([]TFG, error)
	Names(ctx context.Context) ([]Name, error)
	IncrementViews(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) error
	Stats(ctx context.Context) (Stats, error)
}

// Resolver maps a reference given by id or label to its canonical id.
// *reference.Registry satisfies it.
type Resolver interface {
	ResolveID(ctx context.Context, ref entity.Ref) (string, error)
}

type EventRecorder interface {
	TFGEvent(event string)
}

type nopEvents struct{}

func (nopEvents) TFGEvent(string) {}

const (
	EventCreated    = "created"
	EventUpdated    = "updated"
	EventVerified   = "verified"
	EventUnverified = "unverified"
	EventUploaded   = "uploaded"
	EventDownloaded = "downloaded"
	EventViewed     = "viewed"
	EventDeleted    = "deleted"
)

type Deps struct {
	Store      Store
	Years      Resolver
	Degrees    Resolver
	Advisors   Resolver
	Files      storage.FileStore
	Tx         entity.Transactor
	Logger     *slog.Logger
	Events     EventRecorder
	Pagination config.PaginationConfig
	MaxUpload  int64
}

type Service struct {
	*entity.Service[TFG]
	store      Store
	years      Resolver
	degrees    Resolver
	advisors   Resolver
	files      storage.FileStore
	tx         entity.Transactor
	logger     *slog.Logger
	events     EventRecorder
	pagination config.PaginationConfig
	maxUpload  int64
	tracer     trace.Tracer
}

func NewService(deps Deps) *Service {
	if deps.Tx == nil {
		deps.Tx = core.NopTransactor{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Events == nil {
		deps.Events = nopEvents{}
	}
	if deps.Pagination.DefaultPageSize <= 0 {
		deps.Pagination.DefaultPageSize = 10
	}
	if deps.Pagination.MaxPageSize < deps.Pagination.DefaultPageSize {
		deps.Pagination.MaxPageSize = deps.Pagination.DefaultPageSize
	}

	return &Service{
		Service: entity.NewService(entity.KindTFG, deps.Store, entity.Options[TFG]{
			LabelField: "title",
			Validator:  core.NewValidator(),
			Tx:         deps.Tx,
			Logger:     deps.Logger,
		}),
		store:      deps.Store,
		years:      deps.Years,
		degrees:    deps.Degrees,
		advisors:   deps.Advisors,
		files:      deps.Files,
		tx:         deps.Tx,
		logger:     deps.Logger,
		events:     deps.Events,
		pagination: deps.Pagination,
		maxUpload:  deps.MaxUpload,
		tracer:     otel.Tracer("tfg-registry/tfg"),
	}
}

// Caller identifies who is acting on a thesis.
type Caller struct {
	UserID string
	Role   string
}

func (c Caller) Privileged() bool {
	return core.IsPrivileged(c.Role)
}

// Refs names the reference entities of a thesis. Zero refs are left alone.
type Refs struct {
	Year    entity.Ref
	Degree  entity.Ref
	Advisor entity.Ref
}

// ResolveYearAndDegree resolves both refs to canonical ids, failing with
// YEAR_NOT_FOUND or DEGREE_NOT_FOUND.
func (s *Service) ResolveYearAndDegree(
	ctx context.Context,
	year, degree entity.Ref,
) (string, string, error) {
	yearID, err := s.years.ResolveID(ctx, year)
	if err != nil {
		return "", "", err
	}
	degreeID, err := s.degrees.ResolveID(ctx, degree)
	if err != nil {
		return "", "", err
	}
	return yearID, degreeID, nil
}

func (s *Service) ResolveAdvisor(ctx context.Context, advisor entity.Ref) (string, error) {
	return s.advisors.ResolveID(ctx, advisor)
}

// Prepare resolves the refs present in refs onto t. It must run inside the
// transaction that writes t so the resolved rows stay locked.
func (s *Service) Prepare(ctx context.Context, t *TFG, refs Refs) error {
	if !refs.Year.IsZero() || !refs.Degree.IsZero() {
		year, degree := refs.Year, refs.Degree
		if year.IsZero() {
			year = entity.ByID(t.YearID)
		}
		if degree.IsZero() {
			degree = entity.ByID(t.DegreeID)
		}

		yearID, degreeID, err := s.ResolveYearAndDegree(ctx, year, degree)
		if err != nil {
			return err
		}
		t.YearID, t.DegreeID = yearID, degreeID
	}

	if !refs.Advisor.IsZero() {
		advisorID, err := s.ResolveAdvisor(ctx, refs.Advisor)
		if err != nil {
			return err
		}
		t.AdvisorID = advisorID
	}

	return nil
}

func (s *Service) CreateTFG(
	ctx context.Context,
	caller Caller,
	req CreateRequest,
) (*TFG, error) {
	ctx, span := s.tracer.Start(ctx, "tfg.create")
	defer span.End()

	t := &TFG{
		Student:  strings.TrimSpace(req.Student),
		Title:    strings.TrimSpace(req.Title),
		Keywords: Keywords(req.Keywords),
		Abstract: strings.TrimSpace(req.Abstract),
		Link:     NoLink,
	}
	if caller.UserID != "" {
		createdBy := caller.UserID
		t.CreatedBy = &createdBy
	}

	var created *TFG
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.Prepare(ctx, t, Refs{
			Year:    entity.ParseRef(req.Year),
			Degree:  entity.ParseRef(req.Degree),
			Advisor: entity.ParseRef(req.Advisor),
		}); err != nil {
			return err
		}

		if _, err := s.Create(ctx, t); err != nil {
			return err
		}

		var err error
		created, err = s.GetByID(ctx, t.ID)
		return err
	})
	if err != nil {
		core.SetSpanError(span, err)
		return nil, err
	}

	s.events.TFGEvent(EventCreated)
	return created, nil
}

// UpdateTFG applies the fields present in req.
func (s *Service) UpdateTFG(
	ctx context.Context,
	id string,
	req UpdateRequest,
) (*TFG, error) {
	var updated *TFG
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if err := s.Prepare(ctx, current, req.refs()); err != nil {
			return err
		}

		_, err = s.Update(ctx, id, func(t *TFG) {
			t.YearID, t.DegreeID, t.AdvisorID = current.YearID, current.DegreeID, current.AdvisorID
			req.apply(t)
		})
		if err != nil {
			return err
		}

		updated, err = s.GetByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.TFGEvent(EventUpdated)
	return updated, nil
}

// GetTFGByID returns the thesis and counts a view. Unverified theses are only
// returned when allowUnverified is set.
func (s *Service) GetTFGByID(
	ctx context.Context,
	id string,
	allowUnverified bool,
) (*TFG, error) {
	t, err := s.visible(ctx, id, allowUnverified)
	if err != nil {
		return nil, err
	}

	if s.IncrementViews(ctx, id) {
		t.Views++
	}
	return t, nil
}

func (s *Service) visible(ctx context.Context, id string, allowUnverified bool) (*TFG, error) {
	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !t.Verified && !allowUnverified {
		return nil, core.NotVerifiedError(string(entity.KindTFG))
	}
	return t, nil
}

// IncrementViews never fails the caller; it reports whether the counter moved.
func (s *Service) IncrementViews(ctx context.Context, id string) bool {
	if err := s.store.IncrementViews(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "increment views failed", "tfg_id", id, "error", err)
		return false
	}
	s.events.TFGEvent(EventViewed)
	return true
}

func (s *Service) IncrementDownloads(ctx context.Context, id string) bool {
	if err := s.store.IncrementDownloads(ctx, id); err != nil {
		s.logger.WarnContext(ctx, "increment downloads failed", "tfg_id", id, "error", err)
		return false
	}
	s.events.TFGEvent(EventDownloaded)
	return true
}

type PageResult struct {
	Items       []TFG
	TotalPages  int
	CurrentPage int
	TotalItems  int
}

// SearchFilter is a listing filter whose references are still unresolved.
type SearchFilter struct {
	Year     string
	Degree   string
	Advisor  string
	Verified *bool
	Search   string
}

// resolveFilter returns ok=false when a reference named in the filter does
// not exist, in which case nothing can match.
func (s *Service) resolveFilter(ctx context.Context, sf SearchFilter) (Filter, bool, error) {
	f := Filter{Verified: sf.Verified, Search: strings.TrimSpace(sf.Search)}

	targets := []struct {
		raw      string
		resolver Resolver
		dst      *string
	}{
		{sf.Year, s.years, &f.YearID},
		{sf.Degree, s.degrees, &f.DegreeID},
		{sf.Advisor, s.advisors, &f.AdvisorID},
	}

	for _, tgt := range targets {
		if strings.TrimSpace(tgt.raw) == "" {
			continue
		}
		id, err := tgt.resolver.ResolveID(ctx, entity.ParseRef(tgt.raw))
		if err != nil {
			if errors.Is(err, core.ErrNotFound) {
				return Filter{}, false, nil
			}
			return Filter{}, false, err
		}
		*tgt.dst = id
	}

	return f, true, nil
}

// GetPaginatedTFGs returns page (1-based) of theses matching sf.
func (s *Service) GetPaginatedTFGs(
	ctx context.Context,
	sf SearchFilter,
	page, pageSize int,
) (*PageResult, error) {
	if page < 1 {
		return nil, core.ValidationError(core.FieldError{
			Field:   "page_number",
			Message: "must be at least 1",
		})
	}
	pageSize = s.pageSize(pageSize)

	result := &PageResult{Items: []TFG{}, CurrentPage: page}

	f, ok, err := s.resolveFilter(ctx, sf)
	if err != nil {
		return nil, err
	}
	if !ok {
		return result, nil
	}

	items, total, err := s.store.Page(ctx, f, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, s.HandleError(ctx, err, "getPaginatedTFGs", "")
	}
	if items != nil {
		result.Items = items
	}
	result.TotalItems = total
	result.TotalPages = core.TotalPages(total, pageSize)

	return result, nil
}

func (s *Service) pageSize(requested int) int {
	switch {
	case requested <= 0:
		return s.pagination.DefaultPageSize
	case requested > s.pagination.MaxPageSize:
		return s.pagination.MaxPageSize
	}
	return requested
}

// GetAllTFGs lists every matching thesis without paging.
func (s *Service) GetAllTFGs(ctx context.Context, sf SearchFilter) ([]TFG, error) {
	f, ok, err := s.resolveFilter(ctx, sf)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []TFG{}, nil
	}

	items, err := s.store.List(ctx, f)
	if err != nil {
		return nil, s.HandleError(ctx, err, "getAllTFGs", "")
	}
	if items == nil {
		items = []TFG{}
	}
	return items, nil
}

func (s *Service) GetTFGNames(ctx context.Context) ([]Name, error) {
	names, err := s.store.Names(ctx)
	if err != nil {
		return nil, s.HandleError(ctx, err, "getTFGNames", "")
	}
	if names == nil {
		names = []Name{}
	}
	return names, nil
}

// VerifyTFG marks the thesis verified and stamps the verifier when known.
func (s *Service) VerifyTFG(
	ctx context.Context,
	id, userID string,
	reason *string,
) (*TFG, error) {
	t, err := s.Update(ctx, id, func(t *TFG) {
		t.Verified = true
		t.VerifiedBy = nil
		if userID != "" {
			by := userID
			t.VerifiedBy = &by
		}
		t.Reason = reason
	})
	if err != nil {
		return nil, err
	}

	s.events.TFGEvent(EventVerified)
	return t, nil
}

// UnverifyTFG revokes a verification, keeping the reason.
func (s *Service) UnverifyTFG(ctx context.Context, id string, reason *string) (*TFG, error) {
	t, err := s.Update(ctx, id, func(t *TFG) {
		t.Verified = false
		t.VerifiedBy = nil
		t.Reason = reason
	})
	if err != nil {
		return nil, err
	}

	s.events.TFGEvent(EventUnverified)
	return t, nil
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Data     []byte
	// Size is the declared size; it may exceed len(Data) when the reader
	// was capped.
	Size int64
}

// CheckUpload enforces presence, size and PDF type, in that order.
func (s *Service) CheckUpload(u *Upload) error {
	if u == nil || (u.Size == 0 && len(u.Data) == 0) {
		return core.E(core.CodeNoFileUploaded)
	}

	size := u.Size
	if int64(len(u.Data)) > size {
		size = int64(len(u.Data))
	}
	if s.maxUpload > 0 && size > s.maxUpload {
		return core.Ef(core.CodeFileTooLarge, "file exceeds the %d byte limit", s.maxUpload)
	}

	if !strings.EqualFold(filepath.Ext(u.Filename), ".pdf") {
		return core.E(core.CodeInvalidFileType)
	}
	if !mimetype.Detect(u.Data).Is("application/pdf") {
		return core.Ef(core.CodeInvalidFileType, "file content is not a PDF")
	}

	return nil
}

// UploadFile stores the PDF and points the thesis at it. Only the creator
// or a privileged user may attach a file. A replaced file is removed on a
// best-effort basis.
func (s *Service) UploadFile(
	ctx context.Context,
	id string,
	caller Caller,
	u *Upload,
) (*TFG, error) {
	ctx, span := s.tracer.Start(ctx, "tfg.upload", trace.WithAttributes(
		attribute.String("tfg.id", id),
	))
	defer span.End()

	if err := s.CheckUpload(u); err != nil {
		return nil, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !caller.Privileged() && (current.CreatedBy == nil || *current.CreatedBy != caller.UserID) {
		return nil, core.E(core.CodeUnauthorizedAction)
	}

	url, err := s.files.Upload(ctx, u.Data, filepath.Base(u.Filename))
	if err != nil {
		core.SetSpanError(span, err)
		return nil, err
	}

	updated, err := s.Update(ctx, id, func(t *TFG) {
		t.Link = url
	})
	if err != nil {
		s.removeFile(ctx, id, url)
		return nil, err
	}

	if current.HasFile() && current.Link != url {
		s.removeFile(ctx, id, current.Link)
	}

	s.events.TFGEvent(EventUploaded)
	return updated, nil
}

// Download is a thesis file ready to be served.
type Download struct {
	Filename string
	Data     []byte
}

func (s *Service) DownloadFile(
	ctx context.Context,
	id string,
	allowUnverified bool,
) (*Download, error) {
	t, err := s.visible(ctx, id, allowUnverified)
	if err != nil {
		return nil, err
	}
	if !t.HasFile() {
		return nil, core.E(core.CodeFileNotFound)
	}

	data, err := s.files.Fetch(ctx, t.Link)
	if err != nil {
		return nil, err
	}

	s.IncrementDownloads(ctx, id)

	return &Download{
		Filename: fmt.Sprintf("tfg_%s.pdf", id),
		Data:     data,
	}, nil
}

// DeleteFile removes the stored file, unsets the link and drops the
// verification.
func (s *Service) DeleteFile(ctx context.Context, id string) (*TFG, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.HasFile() {
		return nil, core.E(core.CodeFileNotFound)
	}

	if err := s.files.Delete(ctx, current.Link); err != nil {
		return nil, err
	}

	return s.Update(ctx, id, func(t *TFG) {
		t.Link = NoLink
		t.Verified = false
		t.VerifiedBy = nil
	})
}

// DeleteTFG soft-deletes the thesis after a best-effort removal of its file.
func (s *Service) DeleteTFG(ctx context.Context, id string) (*entity.Ack, error) {
	ctx, span := s.tracer.Start(ctx, "tfg.delete", trace.WithAttributes(
		attribute.String("tfg.id", id),
	))
	defer span.End()

	t, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if t.HasFile() {
		s.removeFile(ctx, id, t.Link)
	}

	if err := s.store.SoftDelete(ctx, id); err != nil {
		core.SetSpanError(span, err)
		return nil, s.HandleError(ctx, err, "delete", id)
	}

	s.events.TFGEvent(EventDeleted)
	return &entity.Ack{Message: "tfg deleted"}, nil
}

func (s *Service) removeFile(ctx context.Context, id, url string) {
	if err := s.files.Delete(ctx, url); err != nil {
		s.logger.WarnContext(ctx, "stored file not removed",
			"tfg_id", id,
			"url", url,
			"error", err,
		)
	}
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	st, err := s.store.Stats(ctx)
	if err != nil {
		return Stats{}, s.HandleError(ctx, err, "stats", "")
	}
	return st, nil
}
