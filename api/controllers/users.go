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

type updateUserRequest struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
	CompanyName *string `json:"company_name,omitempty"`
	Address     *string `json:"address,omitempty"`
	Role        *string `json:"role,omitempty"`
}

func Me(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Get(r.Context(), uid)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user.PasswordHash = ""
		responses.WriteSuccess(w, user)
	}
}

func GetUser(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user.PasswordHash = ""
		responses.WriteSuccess(w, user)
	}
}

func ListUsers(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := usersvc.ListUsersFilter{Limit: limit, Offset: offset}
		if raw := strings.TrimSpace(r.URL.Query().Get("role")); raw != "" {
			role, err := enums.ParseUserRole(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			filter.Role = &role
		}
		if r.URL.Query().Get("active") == "true" {
			filter.ActiveOnly = true
		}

		users, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		for i := range users {
			users[i].PasswordHash = ""
		}
		responses.WriteSuccess(w, users)
	}
}

func UpdateUser(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateUserRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := usersvc.UpdateUserInput{
			FirstName:   payload.FirstName,
			LastName:    payload.LastName,
			PhoneNumber: payload.PhoneNumber,
			CompanyName: payload.CompanyName,
			Address:     payload.Address,
		}
		if payload.Role != nil {
			role, err := enums.ParseUserRole(strings.TrimSpace(*payload.Role))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid role"))
				return
			}
			input.Role = &role
		}

		user, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user.PasswordHash = ""
		responses.WriteSuccess(w, user)
	}
}

func DeactivateUser(svc usersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Deactivate(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}
