package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/gigflow-dispatch/api/controllers"
	"github.com/angelmondragon/gigflow-dispatch/api/middleware"
	"github.com/angelmondragon/gigflow-dispatch/internal/applications"
	"github.com/angelmondragon/gigflow-dispatch/internal/payments"
	"github.com/angelmondragon/gigflow-dispatch/pkg/config"
	"github.com/angelmondragon/gigflow-dispatch/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	gatherer prometheus.Gatherer,
	applicationsService applications.Service,
	paymentsService payments.Service,
	statusReader controllers.StatusReader,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/applications", func(r chi.Router) {
			r.Post("/", controllers.CreateApplication(applicationsService, logg))
			r.Get("/{id}", controllers.GetApplication(applicationsService, logg))
			r.Post("/{id}/dispatch", controllers.RedispatchApplication(applicationsService, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/orders", controllers.CreatePaymentOrder(paymentsService, logg))
			r.Post("/checkout", controllers.Checkout(paymentsService, logg))
			r.Post("/orders/{orderId}/callback", controllers.PaymentCallback(paymentsService, logg))
		})

		r.Get("/records/{kind}/{id}/status", controllers.RecordStatus(statusReader, logg))
	})

	return r
}
