package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/fruteria-pos/api/controllers"
	"github.com/angelmondragon/fruteria-pos/api/middleware"
	"github.com/angelmondragon/fruteria-pos/internal/sessions"
	"github.com/angelmondragon/fruteria-pos/pkg/config"
	"github.com/angelmondragon/fruteria-pos/pkg/logger"
	pkgredis "github.com/angelmondragon/fruteria-pos/pkg/redis"
)

type catalogView interface {
	controllers.CatalogReader
	controllers.CatalogStatus
}

// NewRouter mounts the POS API. receiptsRepo and idempotencyStore may be nil
// when the journal or redis are disabled.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	gatherer prometheus.Gatherer,
	pingers map[string]controllers.Pinger,
	catalog catalogView,
	sessionService sessions.Service,
	ledger controllers.SalesLister,
	receiptsRepo controllers.ReceiptReader,
	idempotencyStore pkgredis.IdempotencyStore,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, catalog, pingers))
	})
	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", controllers.CatalogList(catalog, logg))
			r.Post("/refresh", controllers.CatalogRefresh(catalog, logg))
		})

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", controllers.SessionOpen(sessionService, logg))
			r.Route("/{sessionId}", func(r chi.Router) {
				r.Get("/", controllers.SessionGet(sessionService, logg))
				r.Patch("/", controllers.SessionUpdateDetails(sessionService, logg))
				r.Delete("/", controllers.SessionCancel(sessionService, logg))
				r.Post("/lines", controllers.SessionAddLine(sessionService, logg))
				r.Patch("/lines/{productId}", controllers.SessionUpdateLine(sessionService, logg))
				r.Delete("/lines/{productId}", controllers.SessionRemoveLine(sessionService, logg))
				r.With(middleware.Idempotency(idempotencyStore, logg)).
					Post("/checkout", controllers.SessionCheckout(sessionService, logg))
			})
		})

		r.Get("/sales", controllers.SalesList(ledger, logg))
		r.Route("/receipts", func(r chi.Router) {
			r.Get("/", controllers.ReceiptsList(receiptsRepo, logg))
			r.Get("/{saleId}", controllers.ReceiptGet(receiptsRepo, logg))
		})
	})

	return r
}
