package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/fruteria-pos/api/responses"
	"github.com/angelmondragon/fruteria-pos/internal/sales"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
)

// SalesLister lists committed sales from the backend.
type SalesLister interface {
	ListSales(ctx context.Context) ([]sales.Sale, error)
}

func SalesList(ledger SalesLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "sales ledger unavailable"))
			return
		}
		list, err := ledger.ListSales(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"sales": list})
	}
}
