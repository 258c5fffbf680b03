package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/angelmondragon/fruteria-pos/internal/catalog"
	"github.com/angelmondragon/fruteria-pos/internal/checkout"
	"github.com/angelmondragon/fruteria-pos/internal/sales"
	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
	"github.com/sony/gobreaker/v2"
)

// ListProducts fetches the full product list. Implements catalog.Source.
func (c *Client) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	body, err := c.do(ctx, http.MethodGet, c.productsPath, nil)
	if err != nil {
		return nil, dependencyError(err, "list products")
	}
	var rows []productDTO
	if err := json.Unmarshal(unwrapData(body), &rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode products")
	}
	products := make([]catalog.Product, 0, len(rows))
	for _, row := range rows {
		products = append(products, row.toProduct())
	}
	return products, nil
}

// ListSales fetches committed sales in backend order. Implements sales.Source.
func (c *Client) ListSales(ctx context.Context) ([]sales.Sale, error) {
	body, err := c.do(ctx, http.MethodGet, c.salesPath, nil)
	if err != nil {
		return nil, dependencyError(err, "list sales")
	}
	var rows []saleDTO
	if err := json.Unmarshal(unwrapData(body), &rows); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode sales")
	}
	out := make([]sales.Sale, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toSale())
	}
	return out, nil
}

// SubmitSale posts one sale. Implements checkout.Submitter. A 4xx answer is a
// business rejection; everything else that is not a 2xx is a network failure.
func (c *Client) SubmitSale(ctx context.Context, req checkout.SaleRequest) (*checkout.SaleConfirmation, error) {
	body, err := c.do(ctx, http.MethodPost, c.salesPath, req)
	if err != nil {
		var respErr *responseError
		if errors.As(err, &respErr) && respErr.rejected() {
			message := respErr.Message
			if message == "" {
				message = http.StatusText(respErr.Status)
			}
			return nil, checkout.NewRejectedError(message)
		}
		return nil, checkout.NewNetworkError(networkMessage(err), err)
	}

	var created saleDTO
	if err := json.Unmarshal(unwrapData(body), &created); err != nil {
		return nil, checkout.NewNetworkError("unreadable sale confirmation", err)
	}
	if created.id() == "" {
		return nil, checkout.NewNetworkError("sale confirmation without id", nil)
	}
	return &checkout.SaleConfirmation{
		SaleID:    created.id(),
		CreatedAt: time.Time(created.CreatedAt),
		Total:     created.Total,
	}, nil
}

func networkMessage(err error) string {
	var respErr *responseError
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "sale service temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return "sale service timed out"
	case errors.As(err, &respErr):
		if respErr.Message != "" {
			return respErr.Message
		}
		return "sale service error"
	}
	return "sale service unreachable"
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}

func dependencyError(err error, op string) error {
	var respErr *responseError
	details := map[string]any{"operation": op}
	if errors.As(err, &respErr) {
		details["status"] = respErr.Status
	}
	if errors.Is(err, gobreaker.ErrOpenState) {
		details["breaker"] = "open"
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "shop backend request failed").WithDetails(details)
}
