package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/recipebox/internal/database/models"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailRequired      = errors.New("email is required")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

type Service struct {
	db    *gorm.DB
	cache *TokenCache
}

func NewService(db *gorm.DB, cache *TokenCache) *Service {
	return &Service{db: db, cache: cache}
}

// NormalizeEmail lowercases the trimmed address. The whole address is
// lowercased, not just the domain: login treats addresses
// case-insensitively, so storing a single canonical form keeps the unique
// index honest.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

type CreateInput struct {
	Email    string
	Password string
	Name     string
}

type UpdateInput struct {
	Name     *string
	Password *string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*models.User, error) {
	email := NormalizeEmail(input.Email)
	if email == "" {
		return nil, ErrEmailRequired
	}
	if len(input.Password) < MinPasswordLength {
		return nil, ErrPasswordTooShort
	}

	var existing models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         input.Name,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// CreateSuperuser creates an account with staff and superuser flags set.
// Only the seed command calls this; there is no HTTP path to it.
func (s *Service) CreateSuperuser(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.Create(ctx, CreateInput{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	user.IsStaff = true
	user.IsSuperuser = true
	if err := s.db.WithContext(ctx).Model(user).
		Updates(map[string]interface{}{"is_staff": true, "is_superuser": true}).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies credentials and returns the user's bearer token,
// creating one on first login. The token is bound 1:1 to the user and does
// not expire.
func (s *Service) Authenticate(ctx context.Context, email, password string) (string, error) {
	if password == "" {
		return "", ErrInvalidCredentials
	}

	var user models.User
	if err := s.db.WithContext(ctx).
		Where("email = ?", NormalizeEmail(email)).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}

	if !CheckPassword(password, user.PasswordHash) {
		return "", ErrInvalidCredentials
	}

	var token models.AuthToken
	err := s.db.WithContext(ctx).Where("user_id = ?", user.ID).First(&token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		key, err := NewTokenKey()
		if err != nil {
			return "", err
		}
		token = models.AuthToken{Key: key, UserID: user.ID}
		if err := s.db.WithContext(ctx).Create(&token).Error; err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}

	return token.Key, nil
}

// GetByToken resolves a bearer key to its user. The redis cache is
// consulted first when configured; a miss falls through to the database.
func (s *Service) GetByToken(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}

	if userID, ok := s.cache.Get(ctx, key); ok {
		return s.Get(ctx, userID)
	}

	var token models.AuthToken
	if err := s.db.WithContext(ctx).Where("key = ?", key).First(&token).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	user, err := s.Get(ctx, token.UserID)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, key, user.ID)
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile mutates name and/or password for the given user. Email is
// deliberately not mutable through this path.
func (s *Service) UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Password != nil {
		if len(*input.Password) < MinPasswordLength {
			return nil, ErrPasswordTooShort
		}
		hash, err := HashPassword(*input.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}

	if len(updates) == 0 {
		return user, nil
	}

	if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
		return nil, err
	}
	return user, nil
}
