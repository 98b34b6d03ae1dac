package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/ledgersync/api/controllers"
	"github.com/angelmondragon/ledgersync/api/middleware"
	"github.com/angelmondragon/ledgersync/pkg/config"
	"github.com/angelmondragon/ledgersync/pkg/logger"
)

// NewRouter wires the read-only API. runs and metrics are optional.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	readiness map[string]controllers.Pinger,
	reconciler controllers.Reconciler,
	runs controllers.RunReader,
	metrics http.Handler,
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
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/reconciliation", controllers.GetReconciliation(reconciler, cfg.Sync.Days, logg))
		r.Get("/invoices/unpaid", controllers.GetUnpaidInvoices(reconciler, logg))
		r.Get("/sync/last", controllers.GetLastSync(runs, logg))
		r.Get("/sync/history", controllers.GetSyncHistory(runs, logg))
	})

	return r
}
