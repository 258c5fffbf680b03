package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/fruteria-pos/api/responses"
	"github.com/angelmondragon/fruteria-pos/api/validators"
	"github.com/angelmondragon/fruteria-pos/internal/receipts"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	"github.com/angelmondragon/fruteria-pos/pkg/pagination"
)

// ReceiptReader reads the local receipt journal.
type ReceiptReader interface {
	FindBySaleID(ctx context.Context, saleID string) (receipts.Receipt, error)
	ListRecent(ctx context.Context, params pagination.Params) (receipts.Page, error)
}

// ReceiptsList pages through the journal newest first.
func ReceiptsList(repo ReceiptReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "receipt journal disabled"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := repo.ListRecent(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func ReceiptGet(repo ReceiptReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "receipt journal disabled"))
			return
		}
		receipt, err := repo.FindBySaleID(r.Context(), chi.URLParam(r, "saleId"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}
