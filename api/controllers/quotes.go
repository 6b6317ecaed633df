package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/panelcraft/panelcraft-backend/api/responses"
	"github.com/panelcraft/panelcraft-backend/api/validators"
	quotesvc "github.com/panelcraft/panelcraft-backend/internal/quotes"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
)

type createQuoteRequest struct {
	CustomerID string             `json:"customer_id" validate:"required,uuid"`
	ValidUntil *time.Time         `json:"valid_until,omitempty"`
	Discount   *string            `json:"discount,omitempty"`
	Tax        *string            `json:"tax,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
	Items      []quoteItemRequest `json:"items" validate:"required,min=1,dive"`
}

type quoteItemRequest struct {
	ProductID string  `json:"product_id" validate:"required,uuid"`
	Quantity  int     `json:"quantity" validate:"required,min=1"`
	UnitPrice *string `json:"unit_price,omitempty"`
	Discount  *string `json:"discount,omitempty"`
}

type updateQuoteRequest struct {
	ValidUntil *time.Time         `json:"valid_until,omitempty"`
	Discount   *string            `json:"discount,omitempty"`
	Tax        *string            `json:"tax,omitempty"`
	Notes      *string            `json:"notes,omitempty"`
	Items      []quoteItemRequest `json:"items,omitempty" validate:"omitempty,min=1,dive"`
}

type transitionQuoteRequest struct {
	Status string `json:"status" validate:"required"`
}

type convertQuoteRequest struct {
	ShippingAddress string  `json:"shipping_address" validate:"required"`
	DeliveryNotes   *string `json:"delivery_notes,omitempty"`
}

func CreateQuote(svc quotesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload createQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		customerID, err := parseUUIDString(payload.CustomerID, "customer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		discount, err := parseOptionalAmount(payload.Discount, "discount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tax, err := parseOptionalAmount(payload.Tax, "tax")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := parseQuoteItems(payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Create(r.Context(), quotesvc.CreateQuoteInput{
			CustomerID: customerID,
			ValidUntil: payload.ValidUntil,
			Discount:   discount,
			Tax:        tax,
			Notes:      payload.Notes,
			Items:      items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, quote)
	}
}

func parseQuoteItems(requests []quoteItemRequest) ([]quotesvc.QuoteItemInput, error) {
	items := make([]quotesvc.QuoteItemInput, 0, len(requests))
	for _, item := range requests {
		productID, err := parseUUIDString(item.ProductID, "product_id")
		if err != nil {
			return nil, err
		}
		itemDiscount, err := parseOptionalAmount(item.Discount, "item discount")
		if err != nil {
			return nil, err
		}
		input := quotesvc.QuoteItemInput{
			ProductID: productID,
			Quantity:  item.Quantity,
			Discount:  itemDiscount,
		}
		if item.UnitPrice != nil {
			unitPrice, err := parseAmount(*item.UnitPrice, "unit_price")
			if err != nil {
				return nil, err
			}
			input.UnitPrice = &unitPrice
		}
		items = append(items, input)
	}
	return items, nil
}

// UpdateQuote edits a draft quote. Sending items replaces the existing
// lines wholesale.
func UpdateQuote(svc quotesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := quotesvc.UpdateQuoteInput{
			QuoteID:    id,
			ValidUntil: payload.ValidUntil,
			Notes:      payload.Notes,
		}
		if payload.Discount != nil {
			discount, err := parseAmount(*payload.Discount, "discount")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Discount = &discount
		}
		if payload.Tax != nil {
			tax, err := parseAmount(*payload.Tax, "tax")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Tax = &tax
		}
		if payload.Items != nil {
			items, err := parseQuoteItems(payload.Items)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			input.Items = items
		}

		quote, err := svc.Update(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func GetQuote(svc quotesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func ListQuotes(svc quotesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := quotesvc.ListQuotesFilter{Limit: limit, Offset: offset}
		customerID, err := queryUUID(r, "customer_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.CustomerID = customerID
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseQuoteStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}

		quotes, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quotes)
	}
}

func TransitionQuote(svc quotesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload transitionQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseQuoteStatus(strings.TrimSpace(payload.Status))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
			return
		}

		quote, err := svc.Transition(r.Context(), quotesvc.TransitionInput{
			QuoteID:   id,
			NewStatus: status,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// ConvertQuote turns an accepted quote into an order and returns both.
func ConvertQuote(svc quotesvc.Service, logg *logger.Logger) http.HandlerFunc {
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
		var payload convertQuoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, order, err := svc.ConvertToOrder(r.Context(), quotesvc.ConvertInput{
			QuoteID:         id,
			ShippingAddress: payload.ShippingAddress,
			DeliveryNotes:   payload.DeliveryNotes,
			ActorID:         uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"quote": quote,
			"order": order,
		})
	}
}

// ExpireQuotes flips sent quotes past their validity date to expired.
func ExpireQuotes(svc quotesvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		expired, err := svc.ExpireStale(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int{"expired": expired})
	}
}
