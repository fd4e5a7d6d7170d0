package repositories

import (
	"context"
	"errors"
	"fmt"

	"myshop/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrDuplicateUser is returned when the username or email is already registered.
var ErrDuplicateUser = errors.New("user already exists")

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{
		db: db,
	}
}

// Create stores the user and its empty profile in one transaction.
func (r *GORMUserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("user %s: %w", user.Username, ErrDuplicateUser)
			}
			return fmt.Errorf("failed to create user: %w", err)
		}
		profile := models.UserProfile{ID: uuid.New().String(), UserID: user.ID}
		if err := tx.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to create profile for user %s: %w", user.ID, err)
		}
		return nil
	})
}

func (r *GORMUserRepository) first(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, column+" = ?", value).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("user with %s %s: %w", column, value, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get user by %s %s: %w", column, value, err)
	}
	return &user, nil
}

// GetByUsername retrieves a user by their username from the database.
func (r *GORMUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "username", username)
}

// GetByEmail retrieves a user by their email from the database.
func (r *GORMUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email", email)
}

// GetByID retrieves a user by their ID from the database.
func (r *GORMUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	return r.first(ctx, "id", id)
}

// GetProfile retrieves the profile created alongside the user.
func (r *GORMUserRepository) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	var profile models.UserProfile
	if err := r.db.WithContext(ctx).First(&profile, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("profile of user %s: %w", userID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get profile of user %s: %w", userID, err)
	}
	return &profile, nil
}
