package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/app"
	"github.com/velumart/elite-slot/internal/config"
	"github.com/velumart/elite-slot/internal/domain"
	"github.com/velumart/elite-slot/internal/idempotency"
)

type Handlers struct {
	cfg         *config.Config
	holds       *app.HoldService
	payments    *app.PaymentService
	approvals   *app.ApprovalService
	periods     *app.PeriodService
	catalog     *app.CatalogService
	pricing     *app.PricingService
	extensions  *app.ExtensionService
	eligibility *app.EligibilityService
	idemp       *idempotency.Idempotency
}

func NewHandlers(
	cfg *config.Config,
	holds *app.HoldService,
	payments *app.PaymentService,
	approvals *app.ApprovalService,
	periods *app.PeriodService,
	catalog *app.CatalogService,
	pricing *app.PricingService,
	extensions *app.ExtensionService,
	eligibility *app.EligibilityService,
	idemp *idempotency.Idempotency,
) *Handlers {
	return &Handlers{
		cfg:         cfg,
		holds:       holds,
		payments:    payments,
		approvals:   approvals,
		periods:     periods,
		catalog:     catalog,
		pricing:     pricing,
		extensions:  extensions,
		eligibility: eligibility,
		idemp:       idemp,
	}
}

// buyerID reads the caller identity set by the gateway. Auth itself is an
// outer concern; JWTMiddleware is the seam.
func buyerID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.Header.Get("X-Buyer-ID"))
	if err != nil {
		return uuid.Nil, domain.ErrForbidden
	}
	return id, nil
}

func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		return uuid.Nil, domain.ErrValidation
	}
	return id, nil
}

// replayed serves the cached response for a repeated Idempotency-Key and
// reports whether the request is done.
func (h *Handlers) replayed(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.Header.Get("Idempotency-Key")
	existing, err := h.idemp.Get(r.Context(), key)
	if err != nil {
		writeError(w, err)
		return key, true
	}
	if existing != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(existing.Status)
		w.Write(existing.Result)
		return key, true
	}
	return key, false
}

func reservationBody(res domain.Reservation) map[string]interface{} {
	body := map[string]interface{}{
		"id":                 res.ID,
		"slot_id":            res.SlotID,
		"period_id":          res.PeriodID,
		"listing_id":         res.ListingID,
		"status":             res.Status,
		"price":              res.Price,
		"currency":           res.Currency,
		"country_code":       res.CountryCode,
		"price_needs_review": res.PriceNeedsReview,
	}
	if res.HoldExpiresAt != nil {
		body["hold_expires_at"] = res.HoldExpiresAt.Format(time.RFC3339)
	}
	if res.ConfirmedAt != nil {
		body["confirmed_at"] = res.ConfirmedAt.Format(time.RFC3339)
	}
	if res.ReservedUntil != nil {
		body["reserved_until"] = res.ReservedUntil.Format(time.RFC3339)
	}
	return body
}

func periodBody(p domain.Period) map[string]interface{} {
	return map[string]interface{}{
		"id":        p.ID,
		"starts_at": p.StartsAt.Format(time.RFC3339),
		"ends_at":   p.EndsAt.Format(time.RFC3339),
		"status":    p.Status,
	}
}

func (h *Handlers) Eligibility(w http.ResponseWriter, r *http.Request) {
	buyer, err := buyerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	elig, err := h.eligibility.Check(r.Context(), buyer)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, elig)
}

func (h *Handlers) CurrentPeriod(w http.ResponseWriter, r *http.Request) {
	period, err := h.periods.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, periodBody(period))
}

func (h *Handlers) Availability(w http.ResponseWriter, r *http.Request) {
	period, err := h.periods.Current(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	slots, err := h.catalog.Availability(r.Context(), period.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	rows := make([]map[string]interface{}, 0, len(slots))
	for _, s := range slots {
		row := map[string]interface{}{
			"slot_id":       s.Slot.ID,
			"row":           s.Slot.Row,
			"col":           s.Slot.Col,
			"tier":          s.Slot.Tier,
			"base_price":    s.Slot.BasePrice,
			"display_order": s.Slot.DisplayOrder,
			"status":        s.Status,
		}
		if s.HoldExpiresAt != nil {
			row["hold_expires_at"] = s.HoldExpiresAt.Format(time.RFC3339)
		}
		if s.Listing != nil {
			row["listing"] = s.Listing
		}
		rows = append(rows, row)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"period": periodBody(period),
		"slots":  rows,
	})
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	key, done := h.replayed(w, r)
	if done {
		return
	}
	buyer, err := buyerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		SlotID      uuid.UUID `json:"slot_id"`
		ListingID   uuid.UUID `json:"listing_id"`
		CountryCode string    `json:"country_code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}

	res, err := h.holds.CreateHold(r.Context(), app.CreateHoldInput{
		SlotID:      req.SlotID,
		ListingID:   req.ListingID,
		BuyerID:     buyer,
		CountryCode: req.CountryCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	data := writeJSON(w, http.StatusCreated, reservationBody(res))
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusCreated, Result: data})
}

func (h *Handlers) CancelHold(w http.ResponseWriter, r *http.Request) {
	buyer, err := buyerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.holds.CancelHold(r.Context(), id, buyer); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	key, done := h.replayed(w, r)
	if done {
		return
	}
	buyer, err := buyerID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req struct {
		ReservationID uuid.UUID `json:"reservation_id"`
		PaymentMethod string    `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}

	result, err := h.payments.ConfirmPayment(r.Context(), app.ConfirmPaymentInput{
		ReservationID: req.ReservationID,
		BuyerID:       buyer,
		Method:        req.PaymentMethod,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	body := reservationBody(result.Reservation)
	body["invoice_number"] = result.InvoiceNumber
	data := writeJSON(w, http.StatusOK, body)
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: data})
}

func (h *Handlers) ApproveReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.approvals.Approve(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": domain.ReservationConfirmed})
}

func (h *Handlers) RejectReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if err := h.approvals.Reject(r.Context(), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": domain.ReservationCancelled})
}

func (h *Handlers) CancelReservation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if err := h.approvals.CancelConfirmed(r.Context(), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": domain.ReservationCancelled})
}

func (h *Handlers) RotatePeriod(w http.ResponseWriter, r *http.Request) {
	result, err := h.periods.Rotate(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	body := map[string]interface{}{
		"rotated":  result.Rotated,
		"expired":  result.Expired,
		"notified": result.Notified,
	}
	if result.OldPeriod != nil {
		body["ended_period"] = periodBody(*result.OldPeriod)
	}
	if result.NewPeriod != nil {
		body["new_period"] = periodBody(*result.NewPeriod)
	}
	writeJSON(w, http.StatusOK, body)
}

func (h *Handlers) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	buyer, err := buyerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		ListingID      uuid.UUID `json:"listing_id"`
		TierPreference string    `json:"tier_preference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}

	entry, err := h.periods.JoinWaitlist(r.Context(), app.JoinWaitlistInput{
		BuyerID:        buyer,
		ListingID:      req.ListingID,
		TierPreference: domain.SlotTier(req.TierPreference),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":        entry.ID,
		"period_id": entry.PeriodID,
		"status":    entry.Status,
	})
}

func (h *Handlers) PricingByCountry(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	sheet, err := h.pricing.CountrySheet(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}

	rows := make([]map[string]interface{}, 0, len(sheet))
	for _, row := range sheet {
		rows = append(rows, map[string]interface{}{
			"slot_id":      row.Slot.ID,
			"tier":         row.Slot.Tier,
			"amount":       row.Quote.Amount,
			"currency":     row.Quote.Currency,
			"needs_review": row.Quote.NeedsReview,
			"source":       row.Quote.Source,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"country": code, "prices": rows})
}

func (h *Handlers) ApproveCountryPrices(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	approved, err := h.pricing.ApproveCountry(r.Context(), code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"country": code, "approved": approved})
}

func (h *Handlers) UpsertExchangeRate(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	var req struct {
		Currency string  `json:"currency"`
		Rate     float64 `json:"rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	rate, err := h.pricing.SetExchangeRate(r.Context(), code, req.Currency, req.Rate)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"country_code": rate.CountryCode,
		"currency":     rate.Currency,
		"rate":         rate.Rate,
		"updated_at":   rate.UpdatedAt.Format(time.RFC3339),
	})
}

func (h *Handlers) DeactivateSlot(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.catalog.DeactivateSlot(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) UpdateSlotPrice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	if err := h.catalog.UpdateSlotPrice(r.Context(), id, req.Price); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slot_id": id, "price": req.Price})
}

func (h *Handlers) UpdateTierPrice(w http.ResponseWriter, r *http.Request) {
	tier, err := domain.ParseSlotTier(chi.URLParam(r, "tier"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Price float64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}
	updated, err := h.catalog.UpdateTierPrice(r.Context(), tier, req.Price)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tier":    tier,
		"price":   req.Price,
		"updated": updated,
	})
}

func (h *Handlers) RequestExtension(w http.ResponseWriter, r *http.Request) {
	buyer, err := buyerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Days int `json:"days"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}

	ext, err := h.extensions.Request(r.Context(), id, buyer, req.Days)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"id":             ext.ID,
		"reservation_id": ext.ReservationID,
		"days":           ext.Days,
		"price":          ext.Price,
		"currency":       ext.Currency,
		"status":         ext.Status,
	})
}

func (h *Handlers) PayExtension(w http.ResponseWriter, r *http.Request) {
	key, done := h.replayed(w, r)
	if done {
		return
	}
	buyer, err := buyerID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		PaymentMethod string `json:"payment_method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, domain.ErrValidation)
		return
	}

	invoiceNumber, err := h.extensions.Pay(r.Context(), id, buyer, req.PaymentMethod)
	if err != nil {
		writeError(w, err)
		return
	}
	data := writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":             id,
		"status":         domain.ExtensionPendingAdmin,
		"invoice_number": invoiceNumber,
	})
	h.idemp.Set(r.Context(), key, idempotency.Response{Status: http.StatusOK, Result: data})
}

func (h *Handlers) ApproveExtension(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.extensions.Approve(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": domain.ExtensionApproved})
}

func (h *Handlers) RejectExtension(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	var req struct {
		Reason string `json:"reason"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if err := h.extensions.Reject(r.Context(), id, req.Reason); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "status": domain.ExtensionRejected})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
