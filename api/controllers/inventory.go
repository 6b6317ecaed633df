package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/panelcraft/panelcraft-backend/api/responses"
	"github.com/panelcraft/panelcraft-backend/api/validators"
	inventorysvc "github.com/panelcraft/panelcraft-backend/internal/inventory"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
)

type recordMovementRequest struct {
	ProductID       string  `json:"product_id" validate:"required,uuid"`
	MovementType    string  `json:"movement_type" validate:"required"`
	Quantity        int     `json:"quantity" validate:"required"`
	ReferenceNumber *string `json:"reference_number,omitempty"`
	Notes           *string `json:"notes,omitempty"`
}

type supplierRequest struct {
	Name          string `json:"name" validate:"required"`
	ContactPerson string `json:"contact_person" validate:"required"`
	Email         string `json:"email" validate:"required,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	IsActive      *bool  `json:"is_active,omitempty"`
}

type createPurchaseOrderRequest struct {
	SupplierID           string                     `json:"supplier_id" validate:"required,uuid"`
	ExpectedDeliveryDate time.Time                  `json:"expected_delivery_date" validate:"required"`
	Notes                *string                    `json:"notes,omitempty"`
	Items                []purchaseOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type purchaseOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
	UnitPrice string `json:"unit_price" validate:"required"`
}

type transitionPurchaseOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

// RecordStockMovement registers a manual adjustment. Quantity is signed:
// negative quantities take stock out.
func RecordStockMovement(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload recordMovementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := parseUUIDString(payload.ProductID, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		movementType, err := enums.ParseMovementType(strings.TrimSpace(payload.MovementType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}

		movement, err := svc.RecordMovement(r.Context(), inventorysvc.RecordMovementInput{
			ProductID:       productID,
			MovementType:    movementType,
			Quantity:        payload.Quantity,
			ReferenceNumber: payload.ReferenceNumber,
			Notes:           payload.Notes,
			ActorID:         uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movement)
	}
}

func ListStockMovements(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := inventorysvc.ListMovementsFilter{Limit: limit, Offset: offset}
		productID, err := queryUUID(r, "product_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.ProductID = productID
		if raw := strings.TrimSpace(r.URL.Query().Get("movement_type")); raw != "" {
			movementType, err := enums.ParseMovementType(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
				return
			}
			filter.MovementType = &movementType
		}

		movements, err := svc.ListMovements(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, movements)
	}
}

func LowStockProducts(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		products, err := svc.LowStockProducts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

func CreateSupplier(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload supplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.CreateSupplier(r.Context(), inventorysvc.SupplierInput{
			Name:          payload.Name,
			ContactPerson: payload.ContactPerson,
			Email:         payload.Email,
			Phone:         payload.Phone,
			Address:       payload.Address,
			IsActive:      payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, supplier)
	}
}

func GetSupplier(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.GetSupplier(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, supplier)
	}
}

func ListSuppliers(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		suppliers, err := svc.ListSuppliers(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, suppliers)
	}
}

func UpdateSupplier(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload supplierRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplier, err := svc.UpdateSupplier(r.Context(), id, inventorysvc.SupplierInput{
			Name:          payload.Name,
			ContactPerson: payload.ContactPerson,
			Email:         payload.Email,
			Phone:         payload.Phone,
			Address:       payload.Address,
			IsActive:      payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, supplier)
	}
}

func CreatePurchaseOrder(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload createPurchaseOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		supplierID, err := parseUUIDString(payload.SupplierID, "supplier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]inventorysvc.PurchaseOrderItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := parseUUIDString(item.ProductID, "product_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			unitPrice, err := parseAmount(item.UnitPrice, "unit_price")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			items = append(items, inventorysvc.PurchaseOrderItemInput{
				ProductID: productID,
				Quantity:  item.Quantity,
				UnitPrice: unitPrice,
			})
		}

		po, err := svc.CreatePurchaseOrder(r.Context(), inventorysvc.CreatePurchaseOrderInput{
			SupplierID:           supplierID,
			ExpectedDeliveryDate: payload.ExpectedDeliveryDate,
			Notes:                payload.Notes,
			Items:                items,
			ActorID:              uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, po)
	}
}

func GetPurchaseOrder(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		po, err := svc.GetPurchaseOrder(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, po)
	}
}

func ListPurchaseOrders(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := inventorysvc.ListPurchaseOrdersFilter{Limit: limit, Offset: offset}
		supplierID, err := queryUUID(r, "supplier_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.SupplierID = supplierID
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParsePurchaseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		pos, err := svc.ListPurchaseOrders(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pos)
	}
}

func TransitionPurchaseOrder(svc inventorysvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionPurchaseOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParsePurchaseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		po, err := svc.TransitionPurchaseOrder(r.Context(), inventorysvc.TransitionPurchaseOrderInput{
			PurchaseOrderID: id,
			NewStatus:       status,
			ActorID:         uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, po)
	}
}
