package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/velumart/elite-slot/internal/observability"
	"github.com/velumart/elite-slot/internal/rateLimit"
)

func SetupRouter(h *Handlers, logger observability.Logger, rl *rateLimit.RateLimiter) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggerMiddleware(logger))
	r.Use(TracingMiddleware)
	r.Use(MetricsMiddleware)
	r.Use(JWTMiddleware)
	r.Use(RateLimitMiddleware(rl))
	r.Use(IdempotencyMiddleware)

	r.Get("/v1/eligibility", h.Eligibility)
	r.Get("/v1/period/current", h.CurrentPeriod)
	r.Get("/v1/availability", h.Availability)

	r.Post("/v1/holds", h.CreateHold)
	r.Delete("/v1/holds/{id}", h.CancelHold)
	r.Post("/v1/confirm-payment", h.ConfirmPayment)

	r.Post("/v1/rotate-period", h.RotatePeriod)
	r.Post("/v1/waitlist", h.JoinWaitlist)

	r.Get("/v1/pricing/by-country/{code}", h.PricingByCountry)

	r.Post("/v1/reservations/{id}/extension", h.RequestExtension)
	r.Post("/v1/extensions/{id}/pay", h.PayExtension)

	r.Post("/v1/admin/reservations/{id}/approve", h.ApproveReservation)
	r.Post("/v1/admin/reservations/{id}/reject", h.RejectReservation)
	r.Post("/v1/admin/reservations/{id}/cancel", h.CancelReservation)
	r.Post("/v1/admin/pricing/{code}/approve", h.ApproveCountryPrices)
	r.Post("/v1/admin/exchange-rates/{code}", h.UpsertExchangeRate)
	r.Post("/v1/admin/slots/{id}/price", h.UpdateSlotPrice)
	r.Post("/v1/admin/slots/{id}/deactivate", h.DeactivateSlot)
	r.Post("/v1/admin/tiers/{tier}/price", h.UpdateTierPrice)
	r.Post("/v1/admin/extensions/{id}/approve", h.ApproveExtension)
	r.Post("/v1/admin/extensions/{id}/reject", h.RejectExtension)

	r.Get("/v1/healthz", h.Healthz)
	r.Get("/v1/readyz", h.Readyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	return r
}
