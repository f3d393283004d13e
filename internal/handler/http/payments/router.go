package payments_http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"payments-reconciler/internal/app/payments"
)

// NewRouter builds the HTTP API. requestTimeout must cover a gateway call
// plus the reconciliation around it, or a client sees 504 for a charge that
// still completes.
func NewRouter(p payments.PaymentProcessor, allowedOrigins []string, requestTimeout time.Duration, l *zap.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	RegisterRoutes(r, p, l)
	return r
}

func RegisterRoutes(r chi.Router, p payments.PaymentProcessor, l *zap.Logger) {
	handler := NewPaymentHandler(p, l.With(zap.String("component", "PaymentHTTPHandler")))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("Payments reconciler is healthy!"))
	})

	r.Get("/client-token", handler.ClientTokenHandler)
	r.Get("/customers/{id}/client-token", handler.CustomerClientTokenHandler)

	r.Route("/transactions/{id}", func(r chi.Router) {
		r.Get("/", handler.GetTransactionHandler)
		r.Post("/execute", handler.ExecuteTransactionHandler)
		r.Post("/refund", handler.RefundTransactionHandler)
		r.Post("/void", handler.VoidTransactionHandler)
		r.Post("/status", handler.StatusReportHandler)
		r.Post("/sync", handler.SyncTransactionHandler)
	})
}
