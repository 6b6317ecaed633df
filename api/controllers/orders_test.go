package controllers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/panelcraft/panelcraft-backend/api/middleware"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
)

func orderReadRequest(userID uuid.UUID, role enums.UserRole) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/orders/some-id", nil)
	ctx := middleware.WithUserID(r.Context(), userID.String())
	ctx = middleware.WithRole(ctx, string(role))
	return r.WithContext(ctx)
}

func TestRequireOrderAccessScopesClients(t *testing.T) {
	owner := uuid.New()
	order := &models.Order{ID: uuid.New(), ClientID: owner}

	if err := requireOrderAccess(orderReadRequest(owner, enums.UserRoleClient), order); err != nil {
		t.Fatalf("owner must read their own order got %v", err)
	}

	err := requireOrderAccess(orderReadRequest(uuid.New(), enums.UserRoleClient), order)
	coded := pkgerrors.As(err)
	if coded == nil || coded.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("foreign client must get not found got %v", err)
	}

	if err := requireOrderAccess(orderReadRequest(uuid.New(), enums.UserRoleCommercial), order); err != nil {
		t.Fatalf("staff must read any order got %v", err)
	}
}
