package repository

import (
	"context"
	"errors"

	"github.com/macrogi/macrogi-server/internal/database"
	"github.com/macrogi/macrogi-server/internal/domain"
	apperrors "github.com/macrogi/macrogi-server/internal/errors"
	"gorm.io/gorm"
)

// UserRepository handles user data operations
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetProfile fetches the read-only profile snapshot for a user
func (r *UserRepository) GetProfile(ctx context.Context, userID uint) (*domain.UserProfile, error) {
	var user database.User
	if err := r.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrUserNotFound
		}
		return nil, apperrors.NewDatabaseError(err)
	}
	return toProfile(&user), nil
}

// GetOrCreateUser gets an existing user by email or creates a new one
func (r *UserRepository) GetOrCreateUser(ctx context.Context, email, username string) (*domain.UserProfile, error) {
	var user database.User
	result := r.db.WithContext(ctx).Where("email = ?", email).First(&user)
	if result.Error == nil {
		return toProfile(&user), nil
	}

	if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, apperrors.NewDatabaseError(result.Error)
	}

	user = database.User{
		Email:    email,
		Username: username,
	}

	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, apperrors.NewDatabaseError(err)
	}

	return toProfile(&user), nil
}

// UpdateParams stores explicit ISF/ICR values for a user
func (r *UserRepository) UpdateParams(ctx context.Context, userID uint, isf, icr float64) error {
	result := r.db.WithContext(ctx).Model(&database.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{"isf": isf, "icr": icr})
	if result.Error != nil {
		return apperrors.NewDatabaseError(result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrUserNotFound
	}
	return nil
}

func toProfile(u *database.User) *domain.UserProfile {
	return &domain.UserProfile{
		ID:        u.ID,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Email:     u.Email,
		Username:  u.Username,
		ISF:       u.ISF,
		ICR:       u.ICR,
	}
}
