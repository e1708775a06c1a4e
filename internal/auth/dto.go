// AngelaMos | 2026
// dto.go

package auth

import (
	"time"
)

type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,max=128"`
}

type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,min=1,max=100"`
	Email    string `json:"email"    validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type ValidateRequest struct {
	Code string `json:"code" validate:"required,numeric,len=6"`
}

type RecoveryRequest struct {
	Email string `json:"email" validate:"required,email,max=255"`
}

type RecoverPasswordRequest struct {
	Email    string `json:"email"    validate:"required,email,max=255"`
	Code     string `json:"code"     validate:"required,numeric,len=6"`
	Password string `json:"password" validate:"required,min=6,max=128"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	Validated bool   `json:"validated"`
}

type SessionResponse struct {
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}

func ToSessionResponse(s *Session) SessionResponse {
	return SessionResponse{
		Token:     s.Token.Token,
		TokenType: "Bearer",
		ExpiresAt: s.Token.ExpiresAt,
		User: UserResponse{
			ID:        s.User.ID,
			Name:      s.User.Name,
			Email:     s.User.Email,
			Role:      s.User.Role,
			Validated: s.User.Validated,
		},
	}
}
