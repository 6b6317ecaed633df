package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
)

// ListUsersFilter narrows user listings.
type ListUsersFilter struct {
	Role       *enums.UserRole
	ActiveOnly bool
	Limit      int
	Offset     int
}

// Repository is the persistence surface for user accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateUser(ctx context.Context, user *models.User) error
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context, filter ListUsersFilter) ([]models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a users repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *repository) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) ListUsers(ctx context.Context, filter ListUsersFilter) ([]models.User, error) {
	query := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Role != nil {
		query = query.Where("role = ?", *filter.Role)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var users []models.User
	if err := query.Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *repository) UpdateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Save(user).Error
}

func (r *repository) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("last_login_at", at).Error
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Update("is_active", active).Error
}
