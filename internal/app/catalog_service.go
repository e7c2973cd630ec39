package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/domain"
)

type CatalogRepository interface {
	ListActiveSlots(ctx context.Context) ([]domain.Slot, error)
	NonTerminalByPeriod(ctx context.Context, periodID uuid.UUID) ([]domain.Reservation, error)
	UpdateSlotPrice(ctx context.Context, id uuid.UUID, price float64) error
	UpdateTierPrice(ctx context.Context, tier domain.SlotTier, price float64) (int64, error)
	DeactivateSlot(ctx context.Context, id uuid.UUID) error
}

type CatalogService struct {
	repo     CatalogRepository
	profiles ProfileSource
	clock    clock.Clock
}

func NewCatalogService(repo CatalogRepository, profiles ProfileSource, clk clock.Clock) *CatalogService {
	return &CatalogService{repo: repo, profiles: profiles, clock: clk}
}

const (
	SlotAvailable = "available"
	SlotHeld      = "held"
	SlotPending   = "pending"
	SlotBooked    = "booked"
)

type ListingSummary struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type SlotAvailability struct {
	Slot          domain.Slot
	Status        string
	HoldExpiresAt *time.Time
	Listing       *ListingSummary
}

// Availability joins the active catalog against non-terminal reservations
// for a period. Lapsed holds count as available regardless of whether a
// sweep has run. Only confirmed occupancies expose a listing summary;
// pending ones show a bare marker.
func (s *CatalogService) Availability(ctx context.Context, periodID uuid.UUID) ([]SlotAvailability, error) {
	slots, err := s.repo.ListActiveSlots(ctx)
	if err != nil {
		return nil, err
	}
	reservations, err := s.repo.NonTerminalByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	bySlot := make(map[uuid.UUID]domain.Reservation, len(reservations))
	for _, r := range reservations {
		if r.Occupies(now) {
			bySlot[r.SlotID] = r
		}
	}

	out := make([]SlotAvailability, 0, len(slots))
	for _, slot := range slots {
		av := SlotAvailability{Slot: slot, Status: SlotAvailable}
		if r, ok := bySlot[slot.ID]; ok {
			switch r.Status {
			case domain.ReservationHeld:
				av.Status = SlotHeld
				av.HoldExpiresAt = r.HoldExpiresAt
			case domain.ReservationPendingApproval:
				av.Status = SlotPending
			case domain.ReservationConfirmed:
				av.Status = SlotBooked
				if listing, err := s.profiles.GetListing(ctx, r.ListingID); err == nil {
					av.Listing = &ListingSummary{ID: listing.ID, Title: listing.Title}
				}
			}
		}
		out = append(out, av)
	}
	return out, nil
}

func (s *CatalogService) UpdateSlotPrice(ctx context.Context, slotID uuid.UUID, price float64) error {
	if price <= 0 {
		return domain.ErrValidation
	}
	return s.repo.UpdateSlotPrice(ctx, slotID, price)
}

func (s *CatalogService) UpdateTierPrice(ctx context.Context, tier domain.SlotTier, price float64) (int64, error) {
	if price <= 0 {
		return 0, domain.ErrValidation
	}
	if _, err := domain.ParseSlotTier(string(tier)); err != nil {
		return 0, err
	}
	return s.repo.UpdateTierPrice(ctx, tier, price)
}

// DeactivateSlot retires a slot from sale. Existing reservations on it run
// to their natural end; the slot just stops appearing in availability.
func (s *CatalogService) DeactivateSlot(ctx context.Context, slotID uuid.UUID) error {
	if slotID == uuid.Nil {
		return domain.ErrValidation
	}
	return s.repo.DeactivateSlot(ctx, slotID)
}
