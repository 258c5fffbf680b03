package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fruteria-pos/api/responses"
	"github.com/angelmondragon/fruteria-pos/api/validators"
	"github.com/angelmondragon/fruteria-pos/internal/sessions"
	"github.com/angelmondragon/fruteria-pos/pkg/enums"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
)

func sessionIDParam(r *http.Request) string {
	return chi.URLParam(r, "sessionId")
}

func serviceUnavailable(svc sessions.Service) error {
	if svc == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "session service unavailable")
	}
	return nil
}

// SessionOpen starts a new empty sale.
func SessionOpen(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.Open(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, newSessionResponse(session, false))
	}
}

func SessionGet(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id := sessionIDParam(r)
		session, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, svc.InProgress(id)))
	}
}

// SessionCancel abandons the sale and forgets the session.
func SessionCancel(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Cancel(r.Context(), sessionIDParam(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// SessionUpdateDetails sets the customer and/or the payment method.
func SessionUpdateDetails(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateDetailsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Customer == nil && payload.PaymentMethod == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update"))
			return
		}

		var input sessions.DetailsInput
		if payload.Customer != nil {
			customer := payload.Customer.toCustomer()
			input.Customer = &customer
		}
		if payload.PaymentMethod != nil {
			method := enums.PaymentMethod(*payload.PaymentMethod)
			input.PaymentMethod = &method
		}

		session, err := svc.UpdateDetails(r.Context(), sessionIDParam(r), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, false))
	}
}

// SessionAddLine adds a catalog product to the cart, merging with an existing line.
func SessionAddLine(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload addLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.AddLine(r.Context(), sessionIDParam(r), payload.ProductID, payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, false))
	}
}

// SessionUpdateLine sets a line's quantity; zero or less removes it.
func SessionUpdateLine(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateLineRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.UpdateLine(r.Context(), sessionIDParam(r), chi.URLParam(r, "productId"), payload.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, false))
	}
}

func SessionRemoveLine(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.RemoveLine(r.Context(), sessionIDParam(r), chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newSessionResponse(session, false))
	}
}

// SessionCheckout commits the cart as one sale.
func SessionCheckout(svc sessions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := serviceUnavailable(svc); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Checkout(r.Context(), sessionIDParam(r))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			Sale:         result.Confirmation,
			Receipt:      result.Receipt,
			Session:      newSessionResponse(result.Session, false),
			SessionStale: result.SessionStale,
		})
	}
}
