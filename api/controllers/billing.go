package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/panelcraft/panelcraft-backend/api/responses"
	"github.com/panelcraft/panelcraft-backend/api/validators"
	billingsvc "github.com/panelcraft/panelcraft-backend/internal/billing"
	"github.com/panelcraft/panelcraft-backend/pkg/enums"
	pkgerrors "github.com/panelcraft/panelcraft-backend/pkg/errors"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
)

type recordPaymentRequest struct {
	Amount        string     `json:"amount" validate:"required"`
	PaymentMethod string     `json:"payment_method" validate:"required"`
	PaymentDate   *time.Time `json:"payment_date,omitempty"`
	TransactionID *string    `json:"transaction_id,omitempty"`
	Notes         *string    `json:"notes,omitempty"`
}

type creditNoteRequest struct {
	Amount string `json:"amount" validate:"required"`
	Reason string `json:"reason" validate:"required"`
}

func GetInvoice(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.GetInvoice(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}

func ListInvoices(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset, err := pagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		filter := billingsvc.ListInvoicesFilter{Limit: limit, Offset: offset}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseInvoiceStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}
		clientID, err := queryUUID(r, "client_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.ClientID = clientID

		invoices, err := svc.ListInvoices(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoices)
	}
}

// MarkOverdueInvoices flips past-due invoices to overdue. Exposed for the
// scheduler and for manual runs by accountants.
func MarkOverdueInvoices(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		affected, err := svc.MarkOverdue(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]int64{"marked_overdue": affected})
	}
}

func RecordPayment(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload recordPaymentRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(payload.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(strings.TrimSpace(payload.PaymentMethod))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		payment, invoice, err := svc.RecordPayment(r.Context(), billingsvc.RecordPaymentInput{
			InvoiceID:     invoiceID,
			Amount:        amount,
			PaymentMethod: method,
			PaymentDate:   payload.PaymentDate,
			TransactionID: payload.TransactionID,
			Notes:         payload.Notes,
			ActorID:       uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"payment": payment,
			"invoice": invoice,
		})
	}
}

func ListPayments(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payments, err := svc.ListPayments(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payments)
	}
}

func IssueCreditNote(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		uid, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload creditNoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := parseAmount(payload.Amount, "amount")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		note, err := svc.IssueCreditNote(r.Context(), billingsvc.IssueCreditNoteInput{
			InvoiceID: invoiceID,
			Amount:    amount,
			Reason:    payload.Reason,
			ActorID:   uid,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, note)
	}
}

func ListCreditNotes(svc billingsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		invoiceID, err := pathUUID(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		notes, err := svc.ListCreditNotes(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, notes)
	}
}
