package storage

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// ImageStore persists recipe image files. Keys are opaque to callers;
// RecipeImageKey derives them from the owning recipe's identity so a
// recipe's files are grouped under one prefix.
type ImageStore interface {
	Save(ctx context.Context, key string, r io.Reader) error
	Delete(ctx context.Context, key string) error
	// URL returns the public location of a stored object.
	URL(key string) string
}

// RecipeImageKey builds the storage key for a new recipe image. A random
// filename component means re-uploads never collide with a stale cached
// copy of the previous file.
func RecipeImageKey(recipeID uuid.UUID, format string) string {
	return "recipes/" + recipeID.String() + "/" + uuid.New().String() + "." + format
}

// Compile-time interface satisfaction checks
var (
	_ ImageStore = (*LocalStore)(nil)
	_ ImageStore = (*S3Store)(nil)
	_ ImageStore = (*GCSStore)(nil)
)
