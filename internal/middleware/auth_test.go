// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/tfg-registry/internal/core"
)

type verifierFunc func(ctx context.Context, token string) (*AccessTokenClaims, error)

func (f verifierFunc) VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error) {
	return f(ctx, token)
}

func staticVerifier(claims *AccessTokenClaims, err error) TokenVerifier {
	return verifierFunc(func(context.Context, string) (*AccessTokenClaims, error) {
		return claims, err
	})
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body core.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotNil(t, body.Error)
	return body.Error.Code
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-User", GetUserID(r.Context()))
	w.WriteHeader(http.StatusNoContent)
})

func TestAuthenticator(t *testing.T) {
	validated := &AccessTokenClaims{UserID: "u1", Role: core.RoleUser, Validated: true}
	pending := &AccessTokenClaims{UserID: "u2", Role: core.RoleUser}

	tests := []struct {
		name       string
		header     string
		verifier   TokenVerifier
		opts       []AuthOption
		wantStatus int
		wantCode   string
		wantUser   string
	}{
		{
			name:       "missing header",
			verifier:   staticVerifier(validated, nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.CodeNotToken,
		},
		{
			name:       "wrong scheme",
			header:     "Basic abc",
			verifier:   staticVerifier(validated, nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.CodeNotToken,
		},
		{
			name:       "verifier rejects",
			header:     "Bearer bad",
			verifier:   staticVerifier(nil, errors.New("bad signature")),
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.CodeInvalidToken,
		},
		{
			name:       "verifier reports missing user",
			header:     "Bearer stale",
			verifier:   staticVerifier(nil, core.E(core.CodeUserNotExists)),
			wantStatus: http.StatusNotFound,
			wantCode:   core.CodeUserNotExists,
		},
		{
			name:       "unvalidated account",
			header:     "Bearer ok",
			verifier:   staticVerifier(pending, nil),
			wantStatus: http.StatusUnauthorized,
			wantCode:   core.CodeEmailNotValidated,
		},
		{
			name:       "unvalidated allowed",
			header:     "Bearer ok",
			verifier:   staticVerifier(pending, nil),
			opts:       []AuthOption{AllowUnvalidated()},
			wantStatus: http.StatusNoContent,
			wantUser:   "u2",
		},
		{
			name:       "valid",
			header:     "bearer ok",
			verifier:   staticVerifier(validated, nil),
			wantStatus: http.StatusNoContent,
			wantUser:   "u1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			Authenticator(tt.verifier, tt.opts...)(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
			}
			assert.Equal(t, tt.wantUser, rec.Header().Get("X-User"))
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name       string
		role       string
		wantStatus int
		wantCode   string
	}{
		{"no role", "", http.StatusForbidden, core.CodeUnauthorizedAction},
		{"plain user", core.RoleUser, http.StatusForbidden, core.CodeNotAllowed},
		{"coordinator", core.RoleCoordinator, http.StatusNoContent, ""},
		{"admin", core.RoleAdmin, http.StatusNoContent, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.role != "" {
				req = req.WithContext(WithClaims(req.Context(), &AccessTokenClaims{
					UserID: "u1",
					Role:   tt.role,
				}))
			}
			rec := httptest.NewRecorder()

			RequirePrivileged(okHandler).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, rec))
			}
		})
	}
}

func TestRequireAdminRejectsCoordinator(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithClaims(req.Context(), &AccessTokenClaims{
		UserID: "u1",
		Role:   core.RoleCoordinator,
	}))
	rec := httptest.NewRecorder()

	RequireAdmin(okHandler).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, core.CodeNotAllowed, errorCode(t, rec))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsAuthenticated(ctx))
	assert.Nil(t, GetClaims(ctx))

	ctx = WithClaims(ctx, &AccessTokenClaims{UserID: "u1", Role: core.RoleCoordinator})
	assert.True(t, IsAuthenticated(ctx))
	assert.True(t, IsPrivileged(ctx))
	assert.False(t, IsAdmin(ctx))
	assert.Equal(t, "u1", GetClaims(ctx).UserID)
}
