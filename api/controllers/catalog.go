package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/fruteria-pos/api/responses"
	"github.com/angelmondragon/fruteria-pos/api/validators"
	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
)

// CatalogReader is the catalog view surface the API needs.
type CatalogReader interface {
	ListSellable(term string) []catalog.Product
	Refresh(ctx context.Context) error
	RefreshedAt() time.Time
}

type catalogResponse struct {
	Products    []catalog.Product `json:"products"`
	RefreshedAt *time.Time        `json:"refreshedAt,omitempty"`
}

func newCatalogResponse(view CatalogReader, products []catalog.Product) catalogResponse {
	resp := catalogResponse{Products: products}
	if at := view.RefreshedAt(); !at.IsZero() {
		resp.RefreshedAt = &at
	}
	return resp
}

// CatalogList returns sellable products, optionally filtered by ?q=.
func CatalogList(view CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if view == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		term := validators.ParseSearchTerm(r, "q")
		responses.WriteSuccess(w, newCatalogResponse(view, view.ListSellable(term)))
	}
}

// CatalogRefresh reloads the snapshot from the backend on demand.
func CatalogRefresh(view CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if view == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog unavailable"))
			return
		}
		if err := view.Refresh(r.Context()); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newCatalogResponse(view, view.ListSellable("")))
	}
}
