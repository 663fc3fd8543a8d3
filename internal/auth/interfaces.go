package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/hugh/recipebox/internal/database/models"
)

// Authenticator defines the interface for account and token operations.
type Authenticator interface {
	Create(ctx context.Context, input CreateInput) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
	GetByToken(ctx context.Context, key string) (*models.User, error)
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.User, error)
}

// Compile-time interface satisfaction check
var _ Authenticator = (*Service)(nil)
