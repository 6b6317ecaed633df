package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/panelcraft/panelcraft-backend/api/middleware"
	"github.com/panelcraft/panelcraft-backend/api/responses"
	"github.com/panelcraft/panelcraft-backend/api/validators"
	ordersvc "github.com/panelcraft/panelcraft-backend/internal/orders"
	"github.com/panelcraft/panelcraft-backend/pkg/db/models"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
)

type createOrderRequest struct {
	ClientID        *string                  `json:"client_id,omitempty" validate:"omitempty,uuid"`
	ShippingAddress string                   `json:"shipping_address" validate:"required"`
	DeliveryNotes   *string                  `json:"delivery_notes,omitempty"`
	Items           []createOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type transitionOrderRequest struct {
	Status string `json:"status" validate:"required"`
}

type markDeliveredRequest struct {
	DeliveryDate *time.Time `json:"delivery_date,omitempty"`
}

type deliveryUpdateRequest struct {
	Status   string  `json:"status" validate:"required"`
	Location *string `json:"location,omitempty"`
	Notes    *string `json:"notes,omitempty"`
}

// CreateOrder places an order. Clients order for themselves; staff may order
// on behalf of a client by providing client_id.
func CreateOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		clientID := uid
		if payload.ClientID != nil {
			if middleware.RoleFromContext(r.Context()) == string(enums.UserRoleClient) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "clients cannot order on behalf of others"))
				return
			}
			clientID, err = parseUUIDString(*payload.ClientID, "client_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		items := make([]ordersvc.OrderItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			productID, err := parseUUIDString(item.ProductID, "product_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			items = append(items, ordersvc.OrderItemInput{
				ProductID: productID,
				Quantity:  item.Quantity,
			})
		}

		order, err := svc.Create(r.Context(), ordersvc.CreateOrderInput{
			ClientID:        clientID,
			ShippingAddress: payload.ShippingAddress,
			DeliveryNotes:   payload.DeliveryNotes,
			Items:           items,
			ActorID:         uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// requireOrderAccess applies the same client scoping as ListOrders to single
// order reads. Foreign orders read as not found so order ids stay unguessable.
func requireOrderAccess(r *http.Request, order *models.Order) error {
	if middleware.RoleFromContext(r.Context()) != string(enums.UserRoleClient) {
		return nil
	}
	uid, err := actorID(r)
	if err != nil {
		return err
	}
	if order.ClientID != uid {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return nil
}

func GetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := requireOrderAccess(r, order); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func ListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := ordersvc.ListOrdersFilter{Limit: limit, Offset: offset}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		// Clients only ever see their own orders.
		if middleware.RoleFromContext(r.Context()) == string(enums.UserRoleClient) {
			uid, err := actorID(r)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			filter.ClientID = &uid
		} else {
			clientID, err := queryUUID(r, "client_id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			filter.ClientID = clientID
		}

		orders, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, orders)
	}
}

func TransitionOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload transitionOrderRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.Transition(r.Context(), ordersvc.TransitionInput{
			OrderID:   id,
			NewStatus: status,
			ActorID:   uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func MarkOrderDelivered(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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

		payload := markDeliveredRequest{}
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		order, err := svc.MarkDelivered(r.Context(), ordersvc.MarkDeliveredInput{
			OrderID:      id,
			DeliveryDate: payload.DeliveryDate,
			ActorID:      uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func AddDeliveryUpdate(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload deliveryUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		order, err := svc.AddDeliveryUpdate(r.Context(), ordersvc.AddDeliveryUpdateInput{
			OrderID:  id,
			Status:   status,
			Location: payload.Location,
			Notes:    payload.Notes,
			ActorID:  uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func ListDeliveryUpdates(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if middleware.RoleFromContext(r.Context()) == string(enums.UserRoleClient) {
			order, err := svc.Get(r.Context(), id)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if err := requireOrderAccess(r, order); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		updates, err := svc.ListDeliveryUpdates(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updates)
	}
}
