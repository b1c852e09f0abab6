package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/veritest/veritest-backend/internal/model"
	"github.com/veritest/veritest-backend/internal/repository"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrEmailTaken     = errors.New("email already registered")
	ErrLastAdmin      = errors.New("cannot delete the last admin")
	ErrInvalidRole    = errors.New("invalid role")
)

// UserService is the admin-facing account management layer. Password hashing
// and session invalidation are delegated to AuthService so there is exactly
// one place that knows about bcrypt and login state.
type UserService struct {
	users *repository.UserRepository
	auth  *AuthService
	log   zerolog.Logger
}

func NewUserService(users *repository.UserRepository, auth *AuthService, log zerolog.Logger) *UserService {
	return &UserService{
		users: users,
		auth:  auth,
		log:   log.With().Str("component", "user_service").Logger(),
	}
}

func (s *UserService) GetByID(ctx context.Context, id int) (*model.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// List returns a page of users, optionally filtered by role.
func (s *UserService) List(ctx context.Context, role *model.Role, page, perPage int) ([]model.User, int, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	if role != nil && !role.Valid() {
		return nil, 0, ErrInvalidRole
	}
	return s.users.ListPaginated(ctx, role, perPage, (page-1)*perPage)
}

// Create registers a new account with the given role.
func (s *UserService) Create(ctx context.Context, fullName, email, password string, role model.Role) (*model.User, error) {
	if !role.Valid() {
		return nil, ErrInvalidRole
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u := &model.User{
		FullName:     strings.TrimSpace(fullName),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	s.log.Info().Int("user_id", u.ID).Str("role", string(u.Role)).Msg("user created")
	return u, nil
}

// Update changes name and email. Role changes are intentionally not supported;
// delete and recreate instead so exam ownership stays traceable.
func (s *UserService) Update(ctx context.Context, id int, fullName, email string) (*model.User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fullName != "" {
		u.FullName = strings.TrimSpace(fullName)
	}
	if email != "" {
		u.Email = strings.ToLower(strings.TrimSpace(email))
	}
	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return u, nil
}

// ChangePassword sets a new password and, for students, invalidates any
// active login so the old token cannot keep a session alive.
func (s *UserService) ChangePassword(ctx context.Context, id int, password string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	hash, err := s.auth.HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	if err := s.users.Update(ctx, u); err != nil {
		return err
	}
	if u.Role == model.RoleStudent {
		if err := s.auth.ResetStudentSession(ctx, u.ID); err != nil {
			s.log.Warn().Err(err).Int("user_id", u.ID).Msg("student session not reset after password change")
		}
	}
	return nil
}

// ResetStudentSession clears a student's single-device lock so they can log in
// again from a new browser. Admin escape hatch for "my session is stuck".
func (s *UserService) ResetStudentSession(ctx context.Context, id int) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role != model.RoleStudent {
		return ErrInvalidRole
	}
	return s.auth.ResetStudentSession(ctx, u.ID)
}

func (s *UserService) Delete(ctx context.Context, id int) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if u.Role == model.RoleAdmin {
		admins := model.RoleAdmin
		_, total, err := s.users.ListPaginated(ctx, &admins, 1, 0)
		if err != nil {
			return err
		}
		if total <= 1 {
			return ErrLastAdmin
		}
	}
	return s.users.Delete(ctx, id)
}
