package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"time"

	// Registered decoders determine what counts as a valid image upload.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/recipebox/internal/api/dto"
	"github.com/hugh/recipebox/internal/api/middleware"
	"github.com/hugh/recipebox/internal/api/validation"
	"github.com/hugh/recipebox/internal/database/models"
	"github.com/hugh/recipebox/internal/storage"
	"gorm.io/gorm"
)

const maxImageUploadBytes = 10 << 20 // 10 MiB

type RecipeHandler struct {
	db     *gorm.DB
	store  storage.ImageStore
	logger *slog.Logger
}

func NewRecipeHandler(db *gorm.DB, store storage.ImageStore, logger *slog.Logger) *RecipeHandler {
	return &RecipeHandler{db: db, store: store, logger: logger}
}

// RecipeRequest covers create and both update flavors. Every field is a
// pointer: a PUT treats absent fields as "reset" (associations become
// empty), a PATCH leaves them untouched.
type RecipeRequest struct {
	Title       *string   `json:"title"`
	TimeMinutes *int      `json:"time_minutes"`
	Price       *float64  `json:"price"`
	Link        *string   `json:"link"`
	Tags        *[]string `json:"tags"`
	Ingredients *[]string `json:"ingredients"`
}

func (r RecipeRequest) Validate(partial bool) map[string]string {
	errors := make(map[string]string)
	if r.Title == nil {
		if !partial {
			errors["title"] = "Title is required"
		}
	} else if *r.Title == "" {
		errors["title"] = "Title must not be blank"
	}
	if !partial {
		if r.TimeMinutes == nil {
			errors["time_minutes"] = "Time in minutes is required"
		}
		if r.Price == nil {
			errors["price"] = "Price is required"
		}
	}
	if r.TimeMinutes != nil && *r.TimeMinutes < 0 {
		errors["time_minutes"] = "Time in minutes must not be negative"
	}
	if r.Price != nil && *r.Price < 0 {
		errors["price"] = "Price must not be negative"
	}
	return errors
}

// RecipeResponse is the list representation: associations as id lists.
type RecipeResponse struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	TimeMinutes int      `json:"time_minutes"`
	Price       float64  `json:"price"`
	Link        string   `json:"link,omitempty"`
	Tags        []string `json:"tags"`
	Ingredients []string `json:"ingredients"`
	Image       *string  `json:"image"`
	CreatedAt   string   `json:"created_at"`
}

// RecipeDetailResponse nests full tag and ingredient objects.
type RecipeDetailResponse struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	TimeMinutes int                  `json:"time_minutes"`
	Price       float64              `json:"price"`
	Link        string               `json:"link,omitempty"`
	Tags        []TagResponse        `json:"tags"`
	Ingredients []IngredientResponse `json:"ingredients"`
	Image       *string              `json:"image"`
	CreatedAt   string               `json:"created_at"`
}

func (h *RecipeHandler) imageURL(recipe *models.Recipe) *string {
	if recipe.ImageKey == "" {
		return nil
	}
	url := h.store.URL(recipe.ImageKey)
	return &url
}

func (h *RecipeHandler) recipeToResponse(recipe *models.Recipe) RecipeResponse {
	tags := make([]string, len(recipe.Tags))
	for i, tag := range recipe.Tags {
		tags[i] = tag.ID.String()
	}
	ingredients := make([]string, len(recipe.Ingredients))
	for i, ing := range recipe.Ingredients {
		ingredients[i] = ing.ID.String()
	}

	return RecipeResponse{
		ID:          recipe.ID.String(),
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price,
		Link:        recipe.Link,
		Tags:        tags,
		Ingredients: ingredients,
		Image:       h.imageURL(recipe),
		CreatedAt:   recipe.CreatedAt.Format(time.RFC3339),
	}
}

func (h *RecipeHandler) recipeToDetailResponse(recipe *models.Recipe) RecipeDetailResponse {
	tags := make([]TagResponse, len(recipe.Tags))
	for i := range recipe.Tags {
		tags[i] = tagToResponse(&recipe.Tags[i])
	}
	ingredients := make([]IngredientResponse, len(recipe.Ingredients))
	for i := range recipe.Ingredients {
		ingredients[i] = ingredientToResponse(&recipe.Ingredients[i])
	}

	return RecipeDetailResponse{
		ID:          recipe.ID.String(),
		Title:       recipe.Title,
		TimeMinutes: recipe.TimeMinutes,
		Price:       recipe.Price,
		Link:        recipe.Link,
		Tags:        tags,
		Ingredients: ingredients,
		Image:       h.imageURL(recipe),
		CreatedAt:   recipe.CreatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/v1/recipe/recipes
//
// tags and ingredients accept comma-separated id lists; a recipe matches
// when its association set intersects the given ids (union within a list,
// both filters together narrow the result).
func (h *RecipeHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	query := h.db.WithContext(r.Context()).
		Model(&models.Recipe{}).
		Where("recipes.user_id = ?", userID)

	if param := r.URL.Query().Get("tags"); param != "" {
		tagIDs, err := validation.ParseUUIDList(param)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid tags filter"})
			return
		}
		query = query.
			Joins("JOIN recipe_tags ON recipe_tags.recipe_id = recipes.id").
			Where("recipe_tags.tag_id IN ?", tagIDs)
	}

	if param := r.URL.Query().Get("ingredients"); param != "" {
		ingredientIDs, err := validation.ParseUUIDList(param)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ingredients filter"})
			return
		}
		query = query.
			Joins("JOIN recipe_ingredients ON recipe_ingredients.recipe_id = recipes.id").
			Where("recipe_ingredients.ingredient_id IN ?", ingredientIDs)
	}

	var recipes []models.Recipe
	if err := query.
		Distinct("recipes.*").
		Order("recipes.created_at DESC").
		Preload("Tags").
		Preload("Ingredients").
		Find(&recipes).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list recipes"})
		return
	}

	response := make([]RecipeResponse, len(recipes))
	for i := range recipes {
		response[i] = h.recipeToResponse(&recipes[i])
	}

	writeJSON(w, http.StatusOK, response)
}

// resolveTags maps requested tag ids to the requester's tag records. An id
// that does not exist, or belongs to someone else, fails the whole request.
func (h *RecipeHandler) resolveTags(r *http.Request, userID uuid.UUID, ids []string) ([]models.Tag, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("invalid tag id")
		}
		parsed = append(parsed, id)
	}

	var tags []models.Tag
	if len(parsed) > 0 {
		if err := h.db.WithContext(r.Context()).
			Where("id IN ? AND user_id = ?", parsed, userID).
			Find(&tags).Error; err != nil {
			return nil, err
		}
	}
	if len(tags) != len(parsed) {
		return nil, errors.New("tag not found")
	}
	return tags, nil
}

func (h *RecipeHandler) resolveIngredients(r *http.Request, userID uuid.UUID, ids []string) ([]models.Ingredient, error) {
	parsed := make([]uuid.UUID, 0, len(ids))
	for _, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("invalid ingredient id")
		}
		parsed = append(parsed, id)
	}

	var ingredients []models.Ingredient
	if len(parsed) > 0 {
		if err := h.db.WithContext(r.Context()).
			Where("id IN ? AND user_id = ?", parsed, userID).
			Find(&ingredients).Error; err != nil {
			return nil, err
		}
	}
	if len(ingredients) != len(parsed) {
		return nil, errors.New("ingredient not found")
	}
	return ingredients, nil
}

// Create handles POST /api/v1/recipe/recipes
func (h *RecipeHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req RecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	var tags []models.Tag
	if req.Tags != nil {
		resolved, err := h.resolveTags(r, userID, *req.Tags)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"tags": err.Error()}})
			return
		}
		tags = resolved
	}

	var ingredients []models.Ingredient
	if req.Ingredients != nil {
		resolved, err := h.resolveIngredients(r, userID, *req.Ingredients)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"ingredients": err.Error()}})
			return
		}
		ingredients = resolved
	}

	recipe := models.Recipe{
		Title:       *req.Title,
		TimeMinutes: *req.TimeMinutes,
		Price:       *req.Price,
		UserID:      userID,
	}
	if req.Link != nil {
		recipe.Link = *req.Link
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&recipe).Error; err != nil {
			return err
		}
		if len(tags) > 0 {
			if err := tx.Model(&recipe).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		if len(ingredients) > 0 {
			if err := tx.Model(&recipe).Association("Ingredients").Replace(ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create recipe"})
		return
	}

	recipe.Tags = tags
	recipe.Ingredients = ingredients
	writeJSON(w, http.StatusCreated, h.recipeToDetailResponse(&recipe))
}

func (h *RecipeHandler) findRecipe(w http.ResponseWriter, r *http.Request, preload bool) (*models.Recipe, bool) {
	userID := middleware.GetUserID(r.Context())

	recipeID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid recipe ID"})
		return nil, false
	}

	query := h.db.WithContext(r.Context()).Where("id = ? AND user_id = ?", recipeID, userID)
	if preload {
		query = query.Preload("Tags").Preload("Ingredients")
	}

	var recipe models.Recipe
	if err := query.First(&recipe).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Recipe not found"})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get recipe"})
		return nil, false
	}

	return &recipe, true
}

// Get handles GET /api/v1/recipe/recipes/:id
func (h *RecipeHandler) Get(w http.ResponseWriter, r *http.Request) {
	recipe, ok := h.findRecipe(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.recipeToDetailResponse(recipe))
}

// Update handles PUT /api/v1/recipe/recipes/:id
//
// A full update is a replace: associations become exactly the set of ids
// supplied, so a payload without tags clears the recipe's tags.
func (h *RecipeHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PartialUpdate handles PATCH /api/v1/recipe/recipes/:id
//
// Fields omitted from the payload are left untouched.
func (h *RecipeHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *RecipeHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	userID := middleware.GetUserID(r.Context())

	recipe, ok := h.findRecipe(w, r, false)
	if !ok {
		return
	}

	var req RecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(partial); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	// Resolve associations before touching anything.
	var tags []models.Tag
	replaceTags := !partial || req.Tags != nil
	if req.Tags != nil {
		resolved, err := h.resolveTags(r, userID, *req.Tags)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"tags": err.Error()}})
			return
		}
		tags = resolved
	}

	var ingredients []models.Ingredient
	replaceIngredients := !partial || req.Ingredients != nil
	if req.Ingredients != nil {
		resolved, err := h.resolveIngredients(r, userID, *req.Ingredients)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
				Details: map[string]string{"ingredients": err.Error()}})
			return
		}
		ingredients = resolved
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.TimeMinutes != nil {
		updates["time_minutes"] = *req.TimeMinutes
	}
	if req.Price != nil {
		updates["price"] = *req.Price
	}
	if req.Link != nil {
		updates["link"] = *req.Link
	} else if !partial {
		updates["link"] = ""
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(recipe).Updates(updates).Error; err != nil {
				return err
			}
		}
		if replaceTags {
			if len(tags) == 0 {
				if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
					return err
				}
			} else if err := tx.Model(recipe).Association("Tags").Replace(tags); err != nil {
				return err
			}
		}
		if replaceIngredients {
			if len(ingredients) == 0 {
				if err := tx.Model(recipe).Association("Ingredients").Clear(); err != nil {
					return err
				}
			} else if err := tx.Model(recipe).Association("Ingredients").Replace(ingredients); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update recipe"})
		return
	}

	updated, ok := h.findRecipe(w, r, true)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.recipeToDetailResponse(updated))
}

// Delete handles DELETE /api/v1/recipe/recipes/:id
//
// The stored image file is released here, at the point of deletion; there
// is no background cleanup.
func (h *RecipeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	recipe, ok := h.findRecipe(w, r, false)
	if !ok {
		return
	}

	if recipe.ImageKey != "" {
		if err := h.store.Delete(r.Context(), recipe.ImageKey); err != nil {
			h.logger.Warn("failed to delete recipe image",
				"recipe_id", recipe.ID.String(), "key", recipe.ImageKey, "error", err)
		}
	}

	err := h.db.WithContext(r.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return err
		}
		if err := tx.Model(recipe).Association("Ingredients").Clear(); err != nil {
			return err
		}
		return tx.Delete(recipe).Error
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete recipe"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// UploadImage handles POST /api/v1/recipe/recipes/:id/upload-image
//
// Multipart form with an "image" field. The payload must decode as an
// image; anything else is a 400.
func (h *RecipeHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	recipe, ok := h.findRecipe(w, r, true)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImageUploadBytes)
	if err := r.ParseMultipartForm(maxImageUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid multipart payload"})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"image": "Image file is required"}})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Failed to read upload"})
		return
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed",
			Details: map[string]string{"image": "Upload a valid image"}})
		return
	}

	key := storage.RecipeImageKey(recipe.ID, format)
	if err := h.store.Save(r.Context(), key, bytes.NewReader(data)); err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store image"})
		return
	}

	// A re-upload replaces the previous file.
	oldKey := recipe.ImageKey
	if err := h.db.WithContext(r.Context()).Model(recipe).Update("image_key", key).Error; err != nil {
		_ = h.store.Delete(r.Context(), key)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to store image"})
		return
	}
	recipe.ImageKey = key

	if oldKey != "" {
		if err := h.store.Delete(r.Context(), oldKey); err != nil {
			h.logger.Warn("failed to delete previous recipe image",
				"recipe_id", recipe.ID.String(), "key", oldKey, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, h.recipeToDetailResponse(recipe))
}
