/*
server.go - HTTP router for the cashless ledger API

PURPOSE:
  Wires the API routes onto a chi router with standard middleware.

ROUTES:
  GET    /api/info
  GET    /api/customers
  POST   /api/customers
  GET    /api/customers/lookup?card=N
  GET    /api/customers/{customerID}
  POST   /api/customers/{customerID}/entitlements
  POST   /api/customers/{customerID}/credit
  POST   /api/customers/{customerID}/debit
  GET    /api/customers/{customerID}/transactions
  GET    /api/customers/{customerID}/vouchers
  POST   /api/customers/{customerID}/vouchers
  DELETE /api/customers/{customerID}/vouchers/{voucherID}
  GET    /api/vouchers
  POST   /api/vouchers
  GET    /api/vouchers/{voucherID}
  GET    /api/transactions?year=YYYY&month=M

SEE ALSO:
  - handlers.go: the handler implementations
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the API router with logging, panic recovery, and
// permissive CORS for till clients.
func NewRouter(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/info", h.GetInfo)

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.OpenAccount)
			r.Get("/lookup", h.LookupByCard)

			r.Route("/{customerID}", func(r chi.Router) {
				r.Get("/", h.GetCustomer)
				r.Post("/entitlements", h.ApplyEntitlements)
				r.Post("/credit", h.Credit)
				r.Post("/debit", h.Debit)
				r.Get("/transactions", h.CustomerTransactions)
				r.Get("/vouchers", h.ListCustomerVouchers)
				r.Post("/vouchers", h.AssignVoucher)
				r.Delete("/vouchers/{voucherID}", h.RemoveVoucher)
			})
		})

		r.Route("/vouchers", func(r chi.Router) {
			r.Get("/", h.ListVouchers)
			r.Post("/", h.CreateVoucher)
			r.Get("/{voucherID}", h.GetVoucher)
		})

		r.Get("/transactions", h.ActivityLog)
	})

	return r
}
