// AngelaMos | 2026
// handler.go

package auth

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: core.NewValidator(),
	}
}

// RegisterRoutes mounts the session endpoints on a router already scoped to
// /users. The validation endpoints accept accounts that are not validated yet.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Post("/recover-password", h.RequestRecovery)
	r.Patch("/recover-password", h.RecoverPassword)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticator(h.service, middleware.AllowUnvalidated()))

		r.Post("/validate", h.Validate)
		r.Post("/validate/resend", h.ResendValidation)
		r.Post("/logout", h.Logout)
	})
}

// RegisterWellKnown serves the public signing keys.
func (h *Handler) RegisterWellKnown(r chi.Router) {
	r.Get("/.well-known/jwks.json", h.service.tokens.GetJWKSHandler())
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Register(r.Context(), req)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.Created(w, ToSessionResponse(session))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		core.Error(w, err)
		return
	}

	core.OK(w, ToSessionResponse(session))
}

func (h *Handler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.ValidateAccount(r.Context(), middleware.GetUserID(r.Context()), req.Code); err != nil {
		core.Error(w, err)
		return
	}

	core.Ack(w, "account validated")
}

func (h *Handler) ResendValidation(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ResendValidation(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		core.Error(w, err)
		return
	}

	core.Ack(w, "validation code sent")
}

func (h *Handler) RequestRecovery(w http.ResponseWriter, r *http.Request) {
	var req RecoveryRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.RequestPasswordRecovery(r.Context(), req.Email); err != nil {
		core.Error(w, err)
		return
	}

	core.Ack(w, "recovery code sent")
}

func (h *Handler) RecoverPassword(w http.ResponseWriter, r *http.Request) {
	var req RecoverPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := h.service.RecoverPassword(r.Context(), req.Email, req.Code, req.Password); err != nil {
		core.Error(w, err)
		return
	}

	core.Ack(w, "password updated")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), middleware.GetClaims(r.Context())); err != nil {
		core.Error(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := core.ValidateStruct(h.validator, dst); err != nil {
		core.Error(w, err)
		return false
	}
	return true
}
