package dto

import "github.com/hugh/recipebox/internal/api/validation"

type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (r CreateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email address"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if ok, msg := validation.IsValidPassword(r.Password); !ok {
		errors["password"] = msg
	}

	return errors
}

type TokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r TokenRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type TokenResponse struct {
	Token string `json:"token"`
}

// UpdateMeRequest uses pointers so a PATCH can tell "absent" from "empty".
type UpdateMeRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

func (r UpdateMeRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Password != nil {
		if ok, msg := validation.IsValidPassword(*r.Password); !ok {
			errors["password"] = msg
		}
	}

	return errors
}

type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
