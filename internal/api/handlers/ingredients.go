package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/recipebox/internal/api/dto"
	"github.com/hugh/recipebox/internal/api/middleware"
	"github.com/hugh/recipebox/internal/database/models"
	"gorm.io/gorm"
)

// IngredientHandler mirrors TagHandler; ingredients and tags share the
// same shape and scoping rules.
type IngredientHandler struct {
	db *gorm.DB
}

func NewIngredientHandler(db *gorm.DB) *IngredientHandler {
	return &IngredientHandler{db: db}
}

type IngredientRequest struct {
	Name *string `json:"name"`
}

func (r IngredientRequest) Validate(partial bool) map[string]string {
	errors := make(map[string]string)
	if r.Name == nil {
		if !partial {
			errors["name"] = "Name is required"
		}
	} else if *r.Name == "" {
		errors["name"] = "Name must not be blank"
	}
	return errors
}

type IngredientResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func ingredientToResponse(ing *models.Ingredient) IngredientResponse {
	return IngredientResponse{
		ID:        ing.ID.String(),
		Name:      ing.Name,
		CreatedAt: ing.CreatedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/v1/recipe/ingredients
func (h *IngredientHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	query := h.db.WithContext(r.Context()).
		Model(&models.Ingredient{}).
		Where("ingredients.user_id = ?", userID)

	if assignedOnly(r) {
		query = query.
			Joins("JOIN recipe_ingredients ON recipe_ingredients.ingredient_id = ingredients.id").
			Distinct("ingredients.*")
	}

	var ingredients []models.Ingredient
	if err := query.Order("ingredients.name DESC").Find(&ingredients).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list ingredients"})
		return
	}

	response := make([]IngredientResponse, len(ingredients))
	for i, ing := range ingredients {
		response[i] = ingredientToResponse(&ing)
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/recipe/ingredients
func (h *IngredientHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req IngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	ingredient := models.Ingredient{
		Name:   *req.Name,
		UserID: userID,
	}
	if err := h.db.WithContext(r.Context()).Create(&ingredient).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create ingredient"})
		return
	}

	writeJSON(w, http.StatusCreated, ingredientToResponse(&ingredient))
}

func (h *IngredientHandler) findIngredient(w http.ResponseWriter, r *http.Request) (*models.Ingredient, bool) {
	userID := middleware.GetUserID(r.Context())

	ingredientID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid ingredient ID"})
		return nil, false
	}

	var ingredient models.Ingredient
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", ingredientID, userID).
		First(&ingredient).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Ingredient not found"})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get ingredient"})
		return nil, false
	}

	return &ingredient, true
}

// Get handles GET /api/v1/recipe/ingredients/:id
func (h *IngredientHandler) Get(w http.ResponseWriter, r *http.Request) {
	ingredient, ok := h.findIngredient(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, ingredientToResponse(ingredient))
}

// Update handles PUT /api/v1/recipe/ingredients/:id
func (h *IngredientHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PartialUpdate handles PATCH /api/v1/recipe/ingredients/:id
func (h *IngredientHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *IngredientHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	ingredient, ok := h.findIngredient(w, r)
	if !ok {
		return
	}

	var req IngredientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(partial); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	if req.Name != nil {
		ingredient.Name = *req.Name
		if err := h.db.WithContext(r.Context()).Model(ingredient).Update("name", ingredient.Name).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update ingredient"})
			return
		}
	}

	writeJSON(w, http.StatusOK, ingredientToResponse(ingredient))
}

// Delete handles DELETE /api/v1/recipe/ingredients/:id
func (h *IngredientHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ingredient, ok := h.findIngredient(w, r)
	if !ok {
		return
	}

	tx := h.db.WithContext(r.Context())
	if err := tx.Exec("DELETE FROM recipe_ingredients WHERE ingredient_id = ?", ingredient.ID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete ingredient"})
		return
	}

	if err := tx.Delete(ingredient).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete ingredient"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
