// AngelaMos | 2026
// handler.go

package tfg

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/middleware"
)

const (
	// multipartOverhead is allowed on top of the file limit for form framing.
	multipartOverhead = 1 << 20
	maxJSONBody       = 1 << 20
)

type Handler struct {
	service   *Service
	validator *validator.Validate
	maxUpload int64
}

func NewHandler(service *Service, maxUpload int64) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
		maxUpload: maxUpload,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/tfgs", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Get("/names", h.Names)
		r.Post("/pages/{page}", h.Page)
		r.Get("/{id}", h.Get)
		r.Get("/pdf/{id}", h.Download)
		r.Post("/", h.Create)
		r.Patch("/pdf/{id}", h.UploadFile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequirePrivileged)

			r.Post("/unverified/{page}", h.Unverified)
			r.Put("/{id}", h.Replace)
			r.Patch("/{id}", h.Update)
			r.Patch("/verify/{id}", h.Verify)
			r.Delete("/pdf/{id}", h.DeleteFile)
			r.Delete("/{id}", h.Delete)
		})
	})
}

func caller(r *http.Request) Caller {
	return Caller{
		UserID: middleware.GetUserID(r.Context()),
		Role:   middleware.GetUserRole(r.Context()),
	}
}

// List serves GET /tfgs?year=&degree=&advisor=&search=&verified=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sf := SearchFilter{
		Year:    q.Get("year"),
		Degree:  q.Get("degree"),
		Advisor: q.Get("advisor"),
		Search:  q.Get("search"),
	}

	if raw := q.Get("verified"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			core.JSONError(w, core.ValidationError(core.FieldError{
				Field:   "verified",
				Message: "must be true or false",
			}))
			return
		}
		sf.Verified = &v
	}
	if !caller(r).Privileged() {
		sf.Verified = ptr(true)
	}

	items, err := h.service.GetAllTFGs(r.Context(), sf)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToListItems(items))
}

func (h *Handler) Names(w http.ResponseWriter, r *http.Request) {
	names, err := h.service.GetTFGNames(r.Context())
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, names)
}

func (h *Handler) Page(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, func(sf *SearchFilter) {
		if !caller(r).Privileged() {
			sf.Verified = ptr(true)
		}
	})
}

func (h *Handler) Unverified(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, func(sf *SearchFilter) {
		sf.Verified = ptr(false)
	})
}

func (h *Handler) page(w http.ResponseWriter, r *http.Request, scope func(*SearchFilter)) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		core.JSONError(w, core.ValidationError(core.FieldError{
			Field:   "page_number",
			Message: "must be a number",
		}))
		return
	}

	var req SearchRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	sf := req.filter()
	scope(&sf)

	result, err := h.service.GetPaginatedTFGs(r.Context(), sf, page, req.PageSize)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToPageResponse(result))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.GetTFGByID(r.Context(), chi.URLParam(r, "id"), caller(r).Privileged())
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(t))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.service.CreateTFG(r.Context(), caller(r), req)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.Created(w, ToResponse(t))
}

// Replace is the full update behind PUT; every field is required.
func (h *Handler) Replace(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.update(w, r, req.Full())
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.update(w, r, req)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request, req UpdateRequest) {
	t, err := h.service.UpdateTFG(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(t))
}

// Verify sets or revokes the verification. A missing flag means verify.
func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if !h.decodeOptional(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")

	var (
		t   *TFG
		err error
	)
	if req.Verified != nil && !*req.Verified {
		t, err = h.service.UnverifyTFG(r.Context(), id, req.Reason)
	} else {
		t, err = h.service.VerifyTFG(r.Context(), id, caller(r).UserID, req.Reason)
	}
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(t))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ack, err := h.service.DeleteTFG(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ack)
}

func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	d, err := h.service.DownloadFile(r.Context(), chi.URLParam(r, "id"), caller(r).Privileged())
	if err != nil {
		core.Error(w, err)
		return
	}

	core.File(w, "application/pdf", d.Filename, d.Data)
}

func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	upload, appErr := h.readUpload(w, r)
	if appErr != nil {
		core.JSONError(w, appErr)
		return
	}

	t, err := h.service.UploadFile(r.Context(), chi.URLParam(r, "id"), caller(r), upload)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(t))
}

func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	t, err := h.service.DeleteFile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(t))
}

// readUpload pulls the "file" part out of a multipart body. The size and type
// checks themselves belong to the service.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request) (*Upload, *core.AppError) {
	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, core.E(core.CodeFileTooLarge)
		}
		return nil, core.E(core.CodeNoFileUploaded).Wrap(err)
	}

	f, hdr, err := r.FormFile("file")
	if err != nil {
		return nil, core.E(core.CodeNoFileUploaded).Wrap(err)
	}
	defer func() { _ = f.Close() }() //nolint:errcheck // read-only

	reader := io.Reader(f)
	if h.maxUpload > 0 {
		reader = io.LimitReader(f, h.maxUpload+1)
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, core.E(core.CodeNoFileUploaded).Wrap(err)
	}

	return &Upload{Filename: hdr.Filename, Data: data, Size: hdr.Size}, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	return h.validate(w, dst)
}

// decodeOptional accepts an empty body as the zero value.
func (h *Handler) decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBody))
	if err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, dst); err != nil {
			core.BadRequest(w, "invalid request body")
			return false
		}
	}
	return h.validate(w, dst)
}

func (h *Handler) validate(w http.ResponseWriter, dst any) bool {
	if err := core.ValidateStruct(h.validator, dst); err != nil {
		core.Error(w, err)
		return false
	}
	return true
}

func ptr[T any](v T) *T {
	return &v
}
