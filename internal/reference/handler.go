// AngelaMos | 2026
// handler.go

package reference

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
	"github.com/carterperez-dev/tfg-registry/internal/middleware"
)

type Handler struct {
	registry  *Registry
	key       string
	editors   []string
	validator *validator.Validate
}

// NewHandler exposes a registry under /<kind>s. editors lists the roles
// allowed to create, update and delete entries.
func NewHandler(registry *Registry, editors ...string) *Handler {
	return &Handler{
		registry:  registry,
		key:       string(registry.Kind()),
		editors:   editors,
		validator: core.NewValidator(),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.Route("/"+h.key+"s", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.List)
		r.Get("/search", h.Search)
		if h.registry.Kind() == entity.KindYear {
			r.Get("/current", h.Current)
		}
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireRole(h.editors...))

			r.Post("/", h.Create)
			r.Patch("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var filter entity.ListFilter
	if raw := r.URL.Query().Get("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			core.JSONError(w, core.ValidationError(core.FieldError{
				Field:   "active",
				Message: "must be true or false",
			}))
			return
		}
		filter.Active = &active
	}

	items, err := h.registry.GetAll(r.Context(), filter)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponseList(h.key, items))
}

// Search matches the label case-insensitively anywhere in the string.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	items, err := h.registry.FindByName(r.Context(), r.URL.Query().Get("name"))
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponseList(h.key, items))
}

func (h *Handler) Current(w http.ResponseWriter, r *http.Request) {
	item, err := h.registry.Current(r.Context())
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(h.key, item))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	item, err := h.registry.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(h.key, item))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decode(w, r)
	if !ok {
		return
	}

	var req CreateRequest
	label, err := raw.label(h.key)
	if err != nil {
		core.BadRequest(w, h.key+" must be a string")
		return
	}
	if label != nil {
		req.Label = *label
	}
	if req.Active, err = raw.active(); err != nil {
		core.BadRequest(w, "active must be a boolean")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, h.labelDetails(err))
		return
	}

	item, err := h.registry.Create(r.Context(), req)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.Created(w, ToResponse(h.key, item))
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	raw, ok := h.decode(w, r)
	if !ok {
		return
	}

	var (
		req UpdateRequest
		err error
	)
	if req.Label, err = raw.label(h.key); err != nil {
		core.BadRequest(w, h.key+" must be a string")
		return
	}
	if req.Active, err = raw.active(); err != nil {
		core.BadRequest(w, "active must be a boolean")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		core.JSONError(w, h.labelDetails(err))
		return
	}

	item, err := h.registry.Patch(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToResponse(h.key, item))
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	ack, err := h.registry.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ack)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (rawRequest, bool) {
	var raw rawRequest
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		core.BadRequest(w, "invalid request body")
		return nil, false
	}
	return raw, true
}

// labelDetails reports label failures under the key the client sent.
func (h *Handler) labelDetails(err error) *core.AppError {
	details := core.ValidationDetails(err)
	for i := range details {
		if details[i].Field == "Label" {
			details[i].Field = h.key
		}
	}
	return core.ValidationError(details...)
}
