// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/carterperez-dev/tfg-registry/internal/auth"
	"github.com/carterperez-dev/tfg-registry/internal/core"
	"github.com/carterperez-dev/tfg-registry/internal/entity"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Actor is the authenticated caller of a user management operation.
type Actor struct {
	ID   string
	Role string
}

func (s *Service) handle(ctx context.Context, err error, op, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrNotFound):
		return core.E(core.CodeUserNotExists).Wrap(err)
	case errors.Is(err, core.ErrDuplicateKey):
		return core.E(core.CodeEmailExists).Wrap(err)
	}
	return entity.Normalize(ctx, s.logger, entity.KindUser, err, op, id)
}

func checkID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return core.E(core.CodeInvalidID).Wrap(err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.handle(ctx, err, "getUser", id)
	}
	return user, nil
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, core.E(core.CodeNotToken)
	}
	return s.GetUser(ctx, userID)
}

// SearchByEmail returns nil when no live account uses the address.
func (s *Service) SearchByEmail(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, core.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, s.handle(ctx, err, "searchByEmail", "")
	}
	return user, nil
}

func (s *Service) ListUsers(
	ctx context.Context,
	params ListUsersParams,
) ([]User, int, error) {
	users, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, s.handle(ctx, err, "listUsers", "")
	}
	if users == nil {
		users = []User{}
	}
	return users, total, nil
}

// UpdateUser lets a user edit their own profile; administrators may edit
// anyone's.
func (s *Service) UpdateUser(
	ctx context.Context,
	actor Actor,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	if req.empty() {
		return nil, core.ValidationError(core.FieldError{
			Field:   "body",
			Message: "at least one of name, email or password is required",
		})
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if actor.ID != id && actor.Role != core.RoleAdmin {
		return nil, core.E(core.CodeUnauthorizedAction)
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Email != nil {
		user.Email = normalizeEmail(*req.Email)
	}
	if req.Password != nil {
		hash, err := core.HashPassword(*req.Password)
		if err != nil {
			return nil, s.handle(ctx, err, "updateUser", id)
		}
		user.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, s.handle(ctx, err, "updateUser", id)
	}

	return user, nil
}

// UpdateUserRole changes another user's role. Nobody changes their own.
func (s *Service) UpdateUserRole(
	ctx context.Context,
	actor Actor,
	id, role string,
) (*User, error) {
	if actor.ID == id {
		return nil, core.Ef(core.CodeUnauthorizedAction, "cannot change your own role")
	}
	if !core.IsValidRole(role) {
		return nil, core.ValidationError(core.FieldError{
			Field:   "role",
			Message: "must be one of administrador, coordinador, usuario",
		})
	}

	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpdateRole(ctx, id, role); err != nil {
		return nil, s.handle(ctx, err, "updateUserRole", id)
	}
	user.Role = role

	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id string) (*entity.Ack, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}

	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return nil, s.handle(ctx, err, "deleteUser", id)
	}

	return &entity.Ack{Message: "user deleted"}, nil
}

func (s *Service) Counts(ctx context.Context, lockAt int) (Counts, error) {
	c, err := s.repo.Counts(ctx, lockAt)
	if err != nil {
		return Counts{}, s.handle(ctx, err, "counts", "")
	}
	return c, nil
}

// The methods below back the auth flows.

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		if core.HasCode(err, core.CodeInvalidID) {
			return nil, core.E(core.CodeUserNotExists).Wrap(err)
		}
		return nil, err
	}
	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, s.handle(ctx, err, "getByEmail", "")
	}
	return toUserInfo(user), nil
}

func (s *Service) Create(ctx context.Context, account auth.NewAccount) (*auth.UserInfo, error) {
	user := &User{
		ID:               uuid.New().String(),
		Name:             strings.TrimSpace(account.Name),
		Email:            normalizeEmail(account.Email),
		PasswordHash:     account.PasswordHash,
		Role:             core.RoleUser,
		VerificationCode: account.CodeHash,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, s.handle(ctx, err, "create", "")
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementAttempts(ctx context.Context, id string) (int, error) {
	n, err := s.repo.IncrementAttempts(ctx, id)
	if err != nil {
		return 0, s.handle(ctx, err, "incrementAttempts", id)
	}
	return n, nil
}

func (s *Service) ResetAttempts(ctx context.Context, id string) error {
	return s.handle(ctx, s.repo.ResetAttempts(ctx, id), "resetAttempts", id)
}

func (s *Service) SetCode(ctx context.Context, id string, codeHash *string) error {
	return s.handle(ctx, s.repo.SetCode(ctx, id, codeHash), "setCode", id)
}

func (s *Service) ClearCode(ctx context.Context, id string) error {
	return s.handle(ctx, s.repo.ClearCode(ctx, id), "clearCode", id)
}

func (s *Service) MarkValidated(ctx context.Context, id string) error {
	return s.handle(ctx, s.repo.MarkValidated(ctx, id), "markValidated", id)
}

func (s *Service) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return s.handle(ctx, s.repo.UpdatePassword(ctx, id, passwordHash), "updatePassword", id)
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Validated:    u.Validated,
		Attempts:     u.Attempts,
		CodeHash:     u.VerificationCode,
	}
}

var _ auth.UserProvider = (*Service)(nil)
