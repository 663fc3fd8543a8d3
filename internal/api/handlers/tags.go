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

type TagHandler struct {
	db *gorm.DB
}

func NewTagHandler(db *gorm.DB) *TagHandler {
	return &TagHandler{db: db}
}

// TagRequest covers create and update. Name is a pointer so partial
// updates can distinguish an omitted field from an empty one.
type TagRequest struct {
	Name *string `json:"name"`
}

func (r TagRequest) Validate(partial bool) map[string]string {
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

type TagResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

func tagToResponse(tag *models.Tag) TagResponse {
	return TagResponse{
		ID:        tag.ID.String(),
		Name:      tag.Name,
		CreatedAt: tag.CreatedAt.Format(time.RFC3339),
	}
}

// assignedOnly reports whether the assigned_only query flag is set.
func assignedOnly(r *http.Request) bool {
	v := r.URL.Query().Get("assigned_only")
	return v == "1" || v == "true"
}

// List handles GET /api/v1/recipe/tags
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	query := h.db.WithContext(r.Context()).
		Model(&models.Tag{}).
		Where("tags.user_id = ?", userID)

	// assigned_only restricts to tags attached to at least one recipe;
	// DISTINCT collapses tags shared by several recipes to one row.
	if assignedOnly(r) {
		query = query.
			Joins("JOIN recipe_tags ON recipe_tags.tag_id = tags.id").
			Distinct("tags.*")
	}

	var tags []models.Tag
	if err := query.Order("tags.name DESC").Find(&tags).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tags"})
		return
	}

	response := make([]TagResponse, len(tags))
	for i, tag := range tags {
		response[i] = tagToResponse(&tag)
	}

	writeJSON(w, http.StatusOK, response)
}

// Create handles POST /api/v1/recipe/tags
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(false); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	tag := models.Tag{
		Name:   *req.Name,
		UserID: userID,
	}
	if err := h.db.WithContext(r.Context()).Create(&tag).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create tag"})
		return
	}

	writeJSON(w, http.StatusCreated, tagToResponse(&tag))
}

// findTag loads a tag by path id, scoped to the requester. Records owned
// by other users are indistinguishable from missing ones.
func (h *TagHandler) findTag(w http.ResponseWriter, r *http.Request) (*models.Tag, bool) {
	userID := middleware.GetUserID(r.Context())

	tagID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid tag ID"})
		return nil, false
	}

	var tag models.Tag
	if err := h.db.WithContext(r.Context()).
		Where("id = ? AND user_id = ?", tagID, userID).
		First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Tag not found"})
			return nil, false
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to get tag"})
		return nil, false
	}

	return &tag, true
}

// Get handles GET /api/v1/recipe/tags/:id
func (h *TagHandler) Get(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.findTag(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, tagToResponse(tag))
}

// Update handles PUT /api/v1/recipe/tags/:id
func (h *TagHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// PartialUpdate handles PATCH /api/v1/recipe/tags/:id
func (h *TagHandler) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *TagHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	tag, ok := h.findTag(w, r)
	if !ok {
		return
	}

	var req TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(partial); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	if req.Name != nil {
		tag.Name = *req.Name
		if err := h.db.WithContext(r.Context()).Model(tag).Update("name", tag.Name).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update tag"})
			return
		}
	}

	writeJSON(w, http.StatusOK, tagToResponse(tag))
}

// Delete handles DELETE /api/v1/recipe/tags/:id
func (h *TagHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tag, ok := h.findTag(w, r)
	if !ok {
		return
	}

	tx := h.db.WithContext(r.Context())
	// Detach from any recipes before removing the record itself.
	if err := tx.Exec("DELETE FROM recipe_tags WHERE tag_id = ?", tag.ID).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete tag"})
		return
	}

	if err := tx.Delete(tag).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete tag"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
