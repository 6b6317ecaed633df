package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/panelcraft/panelcraft-backend/api/middleware"
	"github.com/panelcraft/panelcraft-backend/api/validators"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
)

func actorID(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user context")
	}
	return id, nil
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

func pagination(r *http.Request) (limit, offset int, err error) {
	limit, err = validators.ParseQueryInt(r, "limit", defaultPageLimit, 1, maxPageLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err = validators.ParseQueryInt(r, "offset", 0, 0, 1<<30)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return value, nil
}

func parseOptionalAmount(raw *string, field string) (decimal.Decimal, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return decimal.Zero, nil
	}
	return parseAmount(*raw, field)
}

func parseUUIDString(raw, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+field)
	}
	return id, nil
}

func queryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+key)
	}
	return &id, nil
}
