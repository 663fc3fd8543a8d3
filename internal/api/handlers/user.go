package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hugh/recipebox/internal/api/dto"
	"github.com/hugh/recipebox/internal/api/middleware"
	"github.com/hugh/recipebox/internal/auth"
	"github.com/hugh/recipebox/internal/database/models"
)

type UserHandler struct {
	authService *auth.Service
}

func NewUserHandler(authService *auth.Service) *UserHandler {
	return &UserHandler{authService: authService}
}

func userToResponse(user *models.User) dto.UserResponse {
	return dto.UserResponse{
		ID:    user.ID.String(),
		Email: user.Email,
		Name:  user.Name,
	}
}

// Create handles POST /api/v1/user/create
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	user, err := h.authService.Create(r.Context(), auth.CreateInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrEmailTaken):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"email": "Email already registered"},
			})
		case errors.Is(err, auth.ErrEmailRequired), errors.Is(err, auth.ErrPasswordTooShort):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Registration failed"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, userToResponse(user))
}

// Token handles POST /api/v1/user/token
func (h *UserHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	token, err := h.authService.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		// Bad credentials are a 400 on this endpoint, matching the
		// contract of the token exchange (401 is reserved for requests
		// carrying an invalid bearer token).
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error: "Unable to authenticate with provided credentials",
			})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Authentication failed"})
		return
	}

	writeJSON(w, http.StatusOK, dto.TokenResponse{Token: token})
}

// Me handles GET /api/v1/user/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.authService.Get(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found"})
		return
	}

	writeJSON(w, http.StatusOK, userToResponse(user))
}

// UpdateMe handles PATCH /api/v1/user/me
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req dto.UpdateMeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	user, err := h.authService.UpdateProfile(r.Context(), userID, auth.UpdateInput{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooShort) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Update failed"})
		return
	}

	writeJSON(w, http.StatusOK, userToResponse(user))
}
