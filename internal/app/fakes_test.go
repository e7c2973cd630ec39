package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/domain"
)

// fakeStore is an in-memory stand-in for the postgres store. It mirrors
// the adapter's semantics closely enough for service tests: status-guarded
// updates return ErrConflict, missing rows return ErrNotFound, and the
// partial-unique constraints are checked on insert.
type fakeStore struct {
	mu           sync.Mutex
	slots        map[uuid.UUID]domain.Slot
	periods      map[uuid.UUID]*domain.Period
	reservations map[uuid.UUID]*domain.Reservation
	waitlist     []*domain.WaitlistEntry
	extensions   map[uuid.UUID]*domain.ExtensionRequest
	overrides    map[string]domain.PriceOverride
	rates        map[string]domain.ExchangeRate
	payments     []domain.Payment
	invoices     []domain.Invoice
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		slots:        make(map[uuid.UUID]domain.Slot),
		periods:      make(map[uuid.UUID]*domain.Period),
		reservations: make(map[uuid.UUID]*domain.Reservation),
		extensions:   make(map[uuid.UUID]*domain.ExtensionRequest),
		overrides:    make(map[string]domain.PriceOverride),
		rates:        make(map[string]domain.ExchangeRate),
	}
}

func overrideKey(slotID uuid.UUID, country string) string {
	return slotID.String() + "|" + country
}

func (f *fakeStore) addSlot(s domain.Slot) {
	f.slots[s.ID] = s
}

func (f *fakeStore) addPeriod(p domain.Period) {
	cp := p
	f.periods[p.ID] = &cp
}

func (f *fakeStore) addReservation(r domain.Reservation) {
	cp := r
	f.reservations[r.ID] = &cp
}

func (f *fakeStore) addExtension(e domain.ExtensionRequest) {
	cp := e
	f.extensions[e.ID] = &cp
}

func (f *fakeStore) reservation(id uuid.UUID) domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.reservations[id]
}

func (f *fakeStore) extension(id uuid.UUID) domain.ExtensionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.extensions[id]
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) ListActiveSlots(_ context.Context) ([]domain.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Slot
	for _, s := range f.slots {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) GetSlot(_ context.Context, id uuid.UUID) (*domain.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

func (f *fakeStore) DeactivateSlot(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok || !s.Active {
		return domain.ErrNotFound
	}
	s.Active = false
	f.slots[id] = s
	return nil
}

func (f *fakeStore) UpdateSlotPrice(_ context.Context, id uuid.UUID, price float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return domain.ErrNotFound
	}
	s.BasePrice = price
	f.slots[id] = s
	return nil
}

func (f *fakeStore) UpdateTierPrice(_ context.Context, tier domain.SlotTier, price float64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for id, s := range f.slots {
		if s.Tier == tier && s.Active {
			s.BasePrice = price
			f.slots[id] = s
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ActivePeriod(_ context.Context) (*domain.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.periods {
		if p.Status == domain.PeriodActive {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) GetPeriod(_ context.Context, id uuid.UUID) (*domain.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.periods[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) LapsedActivePeriodForUpdate(_ context.Context, now time.Time) (*domain.Period, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.periods {
		if p.Status == domain.PeriodActive && !p.EndsAt.After(now) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeStore) CreatePeriod(_ context.Context, p domain.Period) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Status == domain.PeriodActive {
		for _, existing := range f.periods {
			if existing.Status == domain.PeriodActive {
				return domain.ErrConflict
			}
		}
	}
	cp := p
	f.periods[p.ID] = &cp
	return nil
}

func (f *fakeStore) EndPeriod(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.periods[id]
	if !ok || p.Status != domain.PeriodActive {
		return domain.ErrConflict
	}
	p.Status = domain.PeriodEnded
	return nil
}

func (f *fakeStore) InsertReservation(_ context.Context, r domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.reservations {
		if existing.SlotID == r.SlotID && existing.PeriodID == r.PeriodID && nonTerminal(existing.Status) {
			return domain.ErrConflict
		}
	}
	cp := r
	f.reservations[r.ID] = &cp
	return nil
}

func nonTerminal(s domain.ReservationStatus) bool {
	return s == domain.ReservationHeld || s == domain.ReservationPendingApproval || s == domain.ReservationConfirmed
}

func (f *fakeStore) GetReservation(_ context.Context, id uuid.UUID) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return f.GetReservation(ctx, id)
}

func (f *fakeStore) OccupantForUpdate(_ context.Context, slotID, periodID uuid.UUID) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.reservations {
		if r.SlotID == slotID && r.PeriodID == periodID && nonTerminal(r.Status) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) NonTerminalByPeriod(_ context.Context, periodID uuid.UUID) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.PeriodID == periodID && nonTerminal(r.Status) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeStore) SweepExpiredHolds(_ context.Context, periodID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []uuid.UUID
	for _, r := range f.reservations {
		if r.PeriodID == periodID && r.Status == domain.ReservationHeld && r.HoldExpiresAt != nil && !r.HoldExpiresAt.After(now) {
			r.Status = domain.ReservationExpired
			ids = append(ids, r.ID)
		}
	}
	return ids, nil
}

func (f *fakeStore) CancelBuyerHeld(_ context.Context, buyerID, periodID uuid.UUID, reason string) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var slots []uuid.UUID
	for _, r := range f.reservations {
		if r.BuyerID == buyerID && r.PeriodID == periodID && r.Status == domain.ReservationHeld {
			r.Status = domain.ReservationCancelled
			r.CancelReason = reason
			slots = append(slots, r.SlotID)
		}
	}
	return slots, nil
}

func (f *fakeStore) SetConfirmed(_ context.Context, id uuid.UUID, from domain.ReservationStatus, at time.Time, paymentID, invoiceID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != from {
		return domain.ErrConflict
	}
	r.Status = domain.ReservationConfirmed
	r.ConfirmedAt = &at
	r.HoldExpiresAt = nil
	if paymentID != nil {
		r.PaymentID = paymentID
	}
	if invoiceID != nil {
		r.InvoiceID = invoiceID
	}
	return nil
}

func (f *fakeStore) SetPendingApproval(_ context.Context, id uuid.UUID, paymentID, invoiceID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != domain.ReservationHeld {
		return domain.ErrConflict
	}
	r.Status = domain.ReservationPendingApproval
	r.HoldExpiresAt = nil
	r.PaymentID = &paymentID
	r.InvoiceID = &invoiceID
	return nil
}

func (f *fakeStore) SetCancelled(_ context.Context, id uuid.UUID, from domain.ReservationStatus, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != from {
		return domain.ErrConflict
	}
	r.Status = domain.ReservationCancelled
	r.CancelReason = reason
	return nil
}

func (f *fakeStore) ApplyReviewedPrice(_ context.Context, id uuid.UUID, price float64, currency string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.PriceNeedsReview = false
	r.Price = price
	r.Currency = currency
	return nil
}

func (f *fakeStore) ExpireConfirmed(_ context.Context, periodID uuid.UUID, periodEnd, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.reservations {
		if r.PeriodID != periodID || r.Status != domain.ReservationConfirmed {
			continue
		}
		end := periodEnd
		if r.ReservedUntil != nil && r.ReservedUntil.After(end) {
			end = *r.ReservedUntil
		}
		if !end.After(now) {
			r.Status = domain.ReservationExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ExpireLapsedExtended(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.reservations {
		if r.Status != domain.ReservationConfirmed {
			continue
		}
		p, ok := f.periods[r.PeriodID]
		if !ok || p.Status != domain.PeriodEnded {
			continue
		}
		end := p.EndsAt
		if r.ReservedUntil != nil {
			end = *r.ReservedUntil
		}
		if !end.After(now) {
			r.Status = domain.ReservationExpired
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) SetReservedUntil(_ context.Context, id uuid.UUID, until time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.reservations[id]
	if !ok || r.Status != domain.ReservationConfirmed {
		return domain.ErrConflict
	}
	r.ReservedUntil = &until
	return nil
}

func (f *fakeStore) InsertWaitlistEntry(_ context.Context, e domain.WaitlistEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.waitlist {
		if existing.PeriodID == e.PeriodID && existing.BuyerID == e.BuyerID && existing.Status == domain.WaitlistWaiting {
			return domain.ErrConflict
		}
	}
	cp := e
	f.waitlist = append(f.waitlist, &cp)
	return nil
}

func (f *fakeStore) WaitingEntries(_ context.Context, periodID uuid.UUID) ([]domain.WaitlistEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.WaitlistEntry
	for _, e := range f.waitlist {
		if e.PeriodID == periodID && e.Status == domain.WaitlistWaiting {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeStore) MarkNotified(_ context.Context, periodID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, e := range f.waitlist {
		if e.PeriodID == periodID && e.Status == domain.WaitlistWaiting {
			e.Status = domain.WaitlistNotified
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InsertExtension(_ context.Context, e domain.ExtensionRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.extensions {
		if existing.ReservationID == e.ReservationID &&
			(existing.Status == domain.ExtensionPendingPayment || existing.Status == domain.ExtensionPendingAdmin) {
			return domain.ErrConflict
		}
	}
	cp := e
	f.extensions[e.ID] = &cp
	return nil
}

func (f *fakeStore) GetExtensionForUpdate(_ context.Context, id uuid.UUID) (*domain.ExtensionRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.extensions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) SetExtensionPaid(_ context.Context, id, paymentID, invoiceID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.extensions[id]
	if !ok || e.Status != domain.ExtensionPendingPayment {
		return domain.ErrConflict
	}
	e.Status = domain.ExtensionPendingAdmin
	e.PaymentID = &paymentID
	e.InvoiceID = &invoiceID
	return nil
}

func (f *fakeStore) SetExtensionStatus(_ context.Context, id uuid.UUID, from, to domain.ExtensionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.extensions[id]
	if !ok || e.Status != from {
		return domain.ErrConflict
	}
	e.Status = to
	return nil
}

func (f *fakeStore) GetOverride(_ context.Context, slotID uuid.UUID, country string) (*domain.PriceOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.overrides[overrideKey(slotID, country)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &o, nil
}

func (f *fakeStore) UpsertOverride(_ context.Context, o domain.PriceOverride) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides[overrideKey(o.SlotID, o.CountryCode)] = o
	return nil
}

func (f *fakeStore) UpsertExchangeRate(_ context.Context, r domain.ExchangeRate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rates[r.CountryCode] = r
	return nil
}

func (f *fakeStore) GetExchangeRate(_ context.Context, country string) (*domain.ExchangeRate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rates[country]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

func (f *fakeStore) InsertPayment(_ context.Context, p domain.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payments = append(f.payments, p)
	return nil
}

func (f *fakeStore) NextInvoiceSeq(_ context.Context, _ string, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	max := 0
	for _, inv := range f.invoices {
		if inv.Year == year && inv.Seq > max {
			max = inv.Seq
		}
	}
	return max + 1, nil
}

func (f *fakeStore) InsertInvoice(_ context.Context, inv domain.Invoice) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.invoices {
		if existing.Year == inv.Year && existing.Seq == inv.Seq {
			return domain.ErrConflict
		}
	}
	f.invoices = append(f.invoices, inv)
	return nil
}

type fakeProfiles struct {
	listings map[uuid.UUID]domain.Listing
	sellers  map[uuid.UUID]domain.Seller
}

func newFakeProfiles() *fakeProfiles {
	return &fakeProfiles{
		listings: make(map[uuid.UUID]domain.Listing),
		sellers:  make(map[uuid.UUID]domain.Seller),
	}
}

func (f *fakeProfiles) GetListing(_ context.Context, id uuid.UUID) (domain.Listing, error) {
	l, ok := f.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (f *fakeProfiles) GetSeller(_ context.Context, id uuid.UUID) (domain.Seller, error) {
	s, ok := f.sellers[id]
	if !ok {
		return domain.Seller{}, domain.ErrNotFound
	}
	return s, nil
}

type sentNotification struct {
	target string
	userID uuid.UUID
	kind   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) User(_ context.Context, userID uuid.UUID, kind string, _ map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{target: "user", userID: userID, kind: kind})
}

func (f *fakeNotifier) Admins(_ context.Context, kind string, _ map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{target: "admins", kind: kind})
}

func (f *fakeNotifier) byKind(kind string) []sentNotification {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentNotification
	for _, n := range f.sent {
		if n.kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type fakeHoldLock struct {
	mu     sync.Mutex
	owners map[string]string
	deny   bool
}

func newFakeHoldLock() *fakeHoldLock {
	return &fakeHoldLock{owners: make(map[string]string)}
}

func (f *fakeHoldLock) SetHoldLock(_ context.Context, slotID, periodID, buyerID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny {
		return false, nil
	}
	key := periodID + ":" + slotID
	owner, held := f.owners[key]
	if held && owner != buyerID {
		return false, nil
	}
	f.owners[key] = buyerID
	return true, nil
}

func (f *fakeHoldLock) holds(slotID, periodID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.owners[periodID+":"+slotID]
	return ok
}

func (f *fakeHoldLock) ReleaseHoldLock(_ context.Context, slotID, periodID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.owners, periodID+":"+slotID)
	return nil
}
