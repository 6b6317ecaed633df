package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/pkg/auth"
	"github.com/panelcraft/panelcraft-backend/pkg/config"
	"github.com/panelcraft/panelcraft-backend/pkg/db"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
	"github.com/panelcraft/panelcraft-backend/pkg/security"
)

const minPasswordLength = 8

// Service defines account and authentication operations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*LoginResult, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	List(ctx context.Context, filter ListUsersFilter) ([]models.User, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo        Repository
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	now         func() time.Time
}

// NewService builds a users service with the required dependencies.
func NewService(repo Repository, jwtCfg config.JWTConfig, passwordCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{
		repo:        repo,
		jwtCfg:      jwtCfg,
		passwordCfg: passwordCfg,
		now:         time.Now,
	}, nil
}

// RegisterInput captures the data required to open an account.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        enums.UserRole
	PhoneNumber *string
	CompanyName *string
	Address     *string
}

// LoginInput carries the credentials presented at login.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult bundles the authenticated user with their access token.
type LoginResult struct {
	User        *models.User
	AccessToken string
}

// UpdateUserInput carries the optional profile fields to change.
type UpdateUserInput struct {
	FirstName   *string
	LastName    *string
	PhoneNumber *string
	CompanyName *string
	Address     *string
	Role        *enums.UserRole
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a valid email is required")
	}
	if len(input.Password) < minPasswordLength {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password must be at least 8 characters")
	}
	if input.FirstName == "" || input.LastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name are required")
	}
	role := input.Role
	if role == "" {
		role = enums.UserRoleClient
	}
	if !role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user role")
	}

	hash, err := security.HashPassword(input.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         role,
		PhoneNumber:  input.PhoneNumber,
		CompanyName:  input.CompanyName,
		Address:      input.Address,
		IsActive:     true,
	}
	if err := s.repo.CreateUser(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") || errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *service) Login(ctx context.Context, input LoginInput) (*LoginResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password are required")
	}

	user, err := s.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account disabled")
	}

	match, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !match {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	now := s.now()
	token, err := auth.MintAccessToken(s.jwtCfg, now, auth.AccessTokenPayload{
		UserID: user.ID,
		Role:   user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint access token")
	}

	if err := s.repo.TouchLastLogin(ctx, user.ID, now); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record login")
	}
	user.LastLoginAt = &now

	return &LoginResult{User: user, AccessToken: token}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, userNotFoundOr(err)
	}
	return user, nil
}

func (s *service) List(ctx context.Context, filter ListUsersFilter) ([]models.User, error) {
	users, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list users")
	}
	return users, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateUserInput) (*models.User, error) {
	user, err := s.repo.FindUserByID(ctx, id)
	if err != nil {
		return nil, userNotFoundOr(err)
	}

	if input.FirstName != nil {
		user.FirstName = *input.FirstName
	}
	if input.LastName != nil {
		user.LastName = *input.LastName
	}
	if input.PhoneNumber != nil {
		user.PhoneNumber = input.PhoneNumber
	}
	if input.CompanyName != nil {
		user.CompanyName = input.CompanyName
	}
	if input.Address != nil {
		user.Address = input.Address
	}
	if input.Role != nil {
		if !input.Role.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid user role")
		}
		user.Role = *input.Role
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return user, nil
}

func (s *service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.FindUserByID(ctx, id); err != nil {
		return userNotFoundOr(err)
	}
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate user")
	}
	return nil
}

func userNotFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
}
