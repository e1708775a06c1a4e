// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/carterperez-dev/tfg-registry/internal/config"
	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/mail"
	"github.com/carterperez-dev/tfg-registry/internal/middleware"
)

// UserInfo is the account state the auth flows read. CodeHash is the hash of
// the pending validation or recovery code.
type UserInfo struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	Validated    bool
	Attempts     int
	CodeHash     *string
}

type NewAccount struct {
	Name         string
	Email        string
	PasswordHash string
	CodeHash     *string
}

// UserProvider is the credential store. Missing accounts fail with
// USER_NOT_EXISTS and taken emails with EMAIL_ALREADY_EXISTS.
type UserProvider interface {
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	Create(ctx context.Context, account NewAccount) (*UserInfo, error)
	IncrementAttempts(ctx context.Context, id string) (int, error)
	ResetAttempts(ctx context.Context, id string) error
	SetCode(ctx context.Context, id string, codeHash *string) error
	ClearCode(ctx context.Context, id string) error
	MarkValidated(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type Deps struct {
	Users       UserProvider
	Tokens      *JWTManager
	Revocations Revocations
	Mail        mail.Sender
	Config      config.AuthConfig
	Logger      *slog.Logger
}

type Service struct {
	users       UserProvider
	tokens      *JWTManager
	revocations Revocations
	mail        mail.Sender
	cfg         config.AuthConfig
	logger      *slog.Logger
	tracer      trace.Tracer
}

func NewService(deps Deps) *Service {
	s := &Service{
		users:       deps.Users,
		tokens:      deps.Tokens,
		revocations: deps.Revocations,
		mail:        deps.Mail,
		cfg:         deps.Config,
		logger:      deps.Logger,
		tracer:      otel.Tracer("tfg-registry/auth"),
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.mail == nil {
		s.mail = mail.NewLogSender(s.logger)
	}
	if s.cfg.MaxLoginAttempts < 1 {
		s.cfg.MaxLoginAttempts = 5
	}
	if s.cfg.MaxCodeAttempts < 1 {
		s.cfg.MaxCodeAttempts = 3
	}

	return s
}

// Session is the outcome of register and login. Code is only set by
// register and is delivered by mail, never in the HTTP response.
type Session struct {
	User  *UserInfo
	Token *IssuedToken
	Code  string
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.register")
	defer span.End()

	email := strings.ToLower(strings.TrimSpace(req.Email))

	if err := s.checkDomain(email); err != nil {
		return nil, err
	}
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing != nil:
		return nil, core.E(core.CodeEmailExists)
	case err != nil && !core.HasCode(err, core.CodeUserNotExists):
		return nil, err
	}

	hash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, core.E(core.CodeDefault).Wrap(err)
	}

	code, codeHash, err := newCode()
	if err != nil {
		return nil, core.E(core.CodeDefault).Wrap(err)
	}

	user, err := s.users.Create(ctx, NewAccount{
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		CodeHash:     &codeHash,
	})
	if err != nil {
		core.SetSpanError(span, err)
		return nil, err
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	s.send(ctx, mail.ValidationCode(user.Email, user.Name, code), user.ID)

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID)

	return &Session{User: user, Token: token, Code: code}, nil
}

// Login issues a token for valid credentials. Accounts that have not
// validated their email still get one; the session gate only lets it reach
// the validation endpoints.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "auth.login")
	defer span.End()

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.Attempts >= s.cfg.MaxLoginAttempts {
		return nil, core.E(core.CodeAccountLocked)
	}

	ok, err := core.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		s.logger.ErrorContext(ctx, "stored password hash unreadable",
			"user_id", user.ID,
			"error", err,
		)
		return nil, core.E(core.CodeDefault).Wrap(err)
	}
	if !ok {
		if _, incErr := s.users.IncrementAttempts(ctx, user.ID); incErr != nil {
			s.logger.WarnContext(ctx, "failed to count login attempt",
				"user_id", user.ID,
				"error", incErr,
			)
		}
		return nil, core.E(core.CodeInvalidPassword)
	}

	if user.Attempts > 0 {
		if err := s.users.ResetAttempts(ctx, user.ID); err != nil {
			return nil, err
		}
		user.Attempts = 0
	}

	token, err := s.issue(user)
	if err != nil {
		return nil, err
	}

	return &Session{User: user, Token: token}, nil
}

// ValidateAccount confirms the email with the code sent at registration.
func (s *Service) ValidateAccount(ctx context.Context, userID, code string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Validated {
		return nil
	}

	if err := s.checkCode(ctx, user, code); err != nil {
		return err
	}

	return s.users.MarkValidated(ctx, user.ID)
}

// ResendValidation replaces the pending validation code with a fresh one.
func (s *Service) ResendValidation(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.Validated {
		return core.Ef(core.CodeUnauthorizedAction, "account is already validated")
	}

	code, err := s.rotateCode(ctx, user)
	if err != nil {
		return err
	}

	s.send(ctx, mail.ValidationCode(user.Email, user.Name, code), user.ID)
	return nil
}

// RequestPasswordRecovery mails a recovery code. Issuing it resets the
// attempts counter, which is also how a locked account is unlocked.
func (s *Service) RequestPasswordRecovery(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	code, err := s.rotateCode(ctx, user)
	if err != nil {
		return err
	}

	s.send(ctx, mail.RecoveryCode(user.Email, user.Name, code), user.ID)
	return nil
}

func (s *Service) RecoverPassword(
	ctx context.Context,
	email, code, newPassword string,
) error {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}

	if err := s.checkCode(ctx, user, code); err != nil {
		return err
	}

	if err := s.checkPassword(newPassword); err != nil {
		return err
	}

	same, err := core.VerifyPassword(newPassword, user.PasswordHash)
	if err == nil && same {
		return core.E(core.CodeSamePassword)
	}

	hash, err := core.HashPassword(newPassword)
	if err != nil {
		return core.E(core.CodeDefault).Wrap(err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "password recovered", "user_id", user.ID)
	return nil
}

// Logout revokes the presented token until it would have expired anyway.
func (s *Service) Logout(ctx context.Context, claims *middleware.AccessTokenClaims) error {
	if claims == nil || claims.TokenID == "" {
		return core.E(core.CodeNotToken)
	}

	if err := s.revocations.Revoke(ctx, claims.TokenID, time.Until(claims.ExpiresAt)); err != nil {
		s.logger.ErrorContext(ctx, "failed to revoke token",
			"user_id", claims.UserID,
			"error", err,
		)
		return core.E(core.CodeDefault).Wrap(err)
	}
	return nil
}

// VerifyAccessToken backs the session gate. Role and validation state come
// from the account, not the token, so changes apply to live sessions.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.tokens.ParseAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		s.logger.ErrorContext(ctx, "revocation check failed", "error", err)
		return nil, core.E(core.CodeDefault).Wrap(err)
	}
	if revoked {
		return nil, core.E(core.CodeInvalidToken).Wrap(core.ErrTokenRevoked)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	if user.Attempts >= s.cfg.MaxLoginAttempts {
		return nil, core.E(core.CodeAccountLocked)
	}

	claims.Role = user.Role
	claims.Validated = user.Validated
	return claims, nil
}

func (s *Service) issue(user *UserInfo) (*IssuedToken, error) {
	token, err := s.tokens.CreateAccessToken(TokenClaims{
		UserID:    user.ID,
		Role:      user.Role,
		Validated: user.Validated,
	})
	if err != nil {
		return nil, core.E(core.CodeDefault).Wrap(err)
	}
	return token, nil
}

// checkCode counts a wrong code against the account. Reaching the threshold
// burns the pending code for good. An account already at the threshold, by
// codes or by failed logins, is refused whatever code it presents.
func (s *Service) checkCode(ctx context.Context, user *UserInfo, code string) error {
	if user.Attempts >= s.cfg.MaxCodeAttempts {
		if user.CodeHash != nil {
			if err := s.users.ClearCode(ctx, user.ID); err != nil {
				return err
			}
		}
		return core.E(core.CodeMaxAttempts)
	}

	if user.CodeHash != nil && core.CompareTokenHash(strings.TrimSpace(code), *user.CodeHash) {
		return nil
	}

	attempts, err := s.users.IncrementAttempts(ctx, user.ID)
	if err != nil {
		return err
	}

	if attempts >= s.cfg.MaxCodeAttempts {
		if err := s.users.ClearCode(ctx, user.ID); err != nil {
			return err
		}
		return core.E(core.CodeMaxAttempts)
	}

	return core.E(core.CodeInvalidCode)
}

func (s *Service) rotateCode(ctx context.Context, user *UserInfo) (string, error) {
	code, codeHash, err := newCode()
	if err != nil {
		return "", core.E(core.CodeDefault).Wrap(err)
	}

	if err := s.users.SetCode(ctx, user.ID, &codeHash); err != nil {
		return "", err
	}
	return code, nil
}

func (s *Service) send(ctx context.Context, msg mail.Message, userID string) {
	if err := s.mail.Send(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to send mail",
			"template", msg.Template,
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *Service) checkDomain(email string) error {
	if len(s.cfg.AllowedEmailDomains) == 0 {
		return nil
	}

	at := strings.LastIndexByte(email, '@')
	domain := email[at+1:]
	if slices.ContainsFunc(s.cfg.AllowedEmailDomains, func(d string) bool {
		return strings.EqualFold(strings.TrimPrefix(d, "@"), domain)
	}) {
		return nil
	}

	return core.ValidationError(core.FieldError{
		Field:   "email",
		Message: "email domain is not allowed",
	})
}

func (s *Service) checkPassword(password string) error {
	if len(password) >= s.cfg.MinPasswordLength {
		return nil
	}
	return core.ValidationError(core.FieldError{
		Field:   "password",
		Message: "password is too short",
	})
}

func newCode() (code, hash string, err error) {
	code, err = core.GenerateVerificationCode()
	if err != nil {
		return "", "", err
	}
	return code, core.HashToken(code), nil
}
