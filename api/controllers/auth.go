package controllers

import (
	"net/http"
	"strings"

	"github.com/panelcraft/panelcraft-backend/api/responses"
	"github.com/panelcraft/panelcraft-backend/api/validators"
	usersvc "github.com/panelcraft/panelcraft-backend/internal/users"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
)

type registerRequest struct {
	Email       string  `json:"email" validate:"required,email"`
	Password    string  `json:"password" validate:"required,min=8"`
	FirstName   string  `json:"first_name" validate:"required"`
	LastName    string  `json:"last_name" validate:"required"`
	Role        *string `json:"role,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	Address     *string `json:"address,omitempty"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	User        any    `json:"user"`
}

// Register opens a new account. Self-service registrations are always
// clients; privileged roles are assigned by admins through user updates.
func Register(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload registerRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		role := enums.UserRoleClient
		if payload.Role != nil {
			parsed, err := enums.ParseUserRole(strings.TrimSpace(*payload.Role))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			role = parsed
		}

		user, err := svc.Register(r.Context(), usersvc.RegisterInput{
			Email:       payload.Email,
			Password:    payload.Password,
			FirstName:   payload.FirstName,
			LastName:    payload.LastName,
			Role:        role,
			PhoneNumber: payload.PhoneNumber,
			CompanyName: payload.CompanyName,
			Address:     payload.Address,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user.PasswordHash = ""

		responses.WriteSuccessStatus(w, http.StatusCreated, user)
	}
}

func Login(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload loginRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), usersvc.LoginInput{
			Email:    payload.Email,
			Password: payload.Password,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result.User.PasswordHash = ""

		responses.WriteSuccess(w, loginResponse{
			AccessToken: result.AccessToken,
			User:        result.User,
		})
	}
}
