package catalog

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/angelmondragon/fruteria-pos/pkg/errors"
)

// View holds the last product snapshot fetched from the Source. It is shared by
// every sale session and only changes on an explicit Refresh.
type View struct {
	source Source
	now    func() time.Time

	mu          sync.RWMutex
	order       []string
	byID        map[string]Product
	refreshedAt time.Time
}

// NewView builds an empty view; call Refresh before serving it.
func NewView(source Source) (*View, error) {
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	return &View{
		source: source,
		now:    time.Now,
		byID:   map[string]Product{},
	}, nil
}

// Refresh replaces the snapshot. A failed load keeps the previous snapshot.
func (v *View) Refresh(ctx context.Context) error {
	products, err := v.source.ListProducts(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog")
	}

	order := make([]string, 0, len(products))
	byID := make(map[string]Product, len(products))
	for _, product := range products {
		if product.ID == "" {
			continue
		}
		if _, dup := byID[product.ID]; !dup {
			order = append(order, product.ID)
		}
		byID[product.ID] = product
	}

	v.mu.Lock()
	v.order = order
	v.byID = byID
	v.refreshedAt = v.now()
	v.mu.Unlock()
	return nil
}

// ListSellable returns active, in-stock products in source order, optionally
// narrowed by a case-insensitive match on name or category.
func (v *View) ListSellable(term string) []Product {
	needle := strings.ToLower(strings.TrimSpace(term))

	v.mu.RLock()
	defer v.mu.RUnlock()

	out := make([]Product, 0, len(v.order))
	for _, id := range v.order {
		product := v.byID[id]
		if !product.Sellable() || !product.matches(needle) {
			continue
		}
		out = append(out, product)
	}
	return out
}

// Lookup returns the snapshot for a product id.
func (v *View) Lookup(id string) (Product, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	product, ok := v.byID[id]
	return product, ok
}

// Loaded reports whether at least one refresh succeeded.
func (v *View) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return !v.refreshedAt.IsZero()
}

func (v *View) RefreshedAt() time.Time {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.refreshedAt
}
