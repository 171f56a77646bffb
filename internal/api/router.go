package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/receipt-ledger/internal/api/handlers"
	"github.com/dvloznov/receipt-ledger/internal/api/middleware"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Receipts        *handlers.ReceiptsHandler
	Reconciliations *handlers.ReconciliationsHandler
	Ledger          *handlers.LedgerHandler
	Jobs            *handlers.JobsHandler
}

// RouterConfig holds the HTTP limits applied to every route.
type RouterConfig struct {
	RateLimitRPS   float64
	RateLimitBurst int
}

// NewRouter creates the chi router with all routes mounted.
func NewRouter(h Handlers, cfg RouterConfig, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(log))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.CORS)
	r.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, log))

	r.Get("/", handlers.Root)
	r.Get("/health", handlers.Health)

	r.Post("/upload-receipt", h.Receipts.UploadReceipt)
	r.Post("/upload-bank-statement", h.Reconciliations.UploadBankStatement)

	// GET kept for clients of the original endpoint.
	r.Get("/fetch-emails", h.Jobs.FetchEmails)
	r.Post("/fetch-emails", h.Jobs.FetchEmails)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ledger", h.Ledger.ListLedger)
		r.Get("/reconciliations/{id}", h.Reconciliations.GetReconciliation)

		r.Get("/jobs", h.Jobs.ListJobs)
		r.Post("/jobs", h.Jobs.EnqueueIngest)
		r.Get("/jobs/{id}", h.Jobs.GetJob)
	})

	return r
}
