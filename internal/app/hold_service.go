package app

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/domain"
	"github.com/velumart/elite-slot/internal/observability"
)

type HoldRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ActivePeriod(ctx context.Context) (*domain.Period, error)
	GetSlot(ctx context.Context, id uuid.UUID) (*domain.Slot, error)
	SweepExpiredHolds(ctx context.Context, periodID uuid.UUID, now time.Time) ([]uuid.UUID, error)
	OccupantForUpdate(ctx context.Context, slotID, periodID uuid.UUID) (*domain.Reservation, error)
	CancelBuyerHeld(ctx context.Context, buyerID, periodID uuid.UUID, reason string) ([]uuid.UUID, error)
	InsertReservation(ctx context.Context, r domain.Reservation) error
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	SetCancelled(ctx context.Context, id uuid.UUID, from domain.ReservationStatus, reason string) error
}

// HoldLock is the redis fast path that rejects obviously-taken slots before
// a transaction is opened. The database remains authoritative.
type HoldLock interface {
	SetHoldLock(ctx context.Context, slotID, periodID, buyerID string, ttl time.Duration) (bool, error)
	ReleaseHoldLock(ctx context.Context, slotID, periodID string) error
}

type HoldService struct {
	repo     HoldRepository
	pricing  *PricingService
	profiles ProfileSource
	lock     HoldLock
	clock    clock.Clock
	holdTTL  time.Duration
}

func NewHoldService(repo HoldRepository, pricing *PricingService, profiles ProfileSource, lock HoldLock, clk clock.Clock, holdTTL time.Duration) *HoldService {
	return &HoldService{
		repo:     repo,
		pricing:  pricing,
		profiles: profiles,
		lock:     lock,
		clock:    clk,
		holdTTL:  holdTTL,
	}
}

type CreateHoldInput struct {
	SlotID      uuid.UUID
	ListingID   uuid.UUID
	BuyerID     uuid.UUID
	CountryCode string
}

// CreateHold places a 15-minute exclusive claim on a slot. Inside the
// transaction it sweeps lapsed holds, re-checks occupancy under a row
// lock, replaces the buyer's previous hold in the period and inserts the
// new reservation with the price snapshotted now.
func (s *HoldService) CreateHold(ctx context.Context, in CreateHoldInput) (domain.Reservation, error) {
	if in.SlotID == uuid.Nil || in.ListingID == uuid.Nil || in.BuyerID == uuid.Nil {
		return domain.Reservation{}, domain.ErrValidation
	}

	seller, err := s.profiles.GetSeller(ctx, in.BuyerID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !seller.EligibleForEliteSlots() {
		return domain.Reservation{}, errors.WithDetail(domain.ErrForbidden, "subscription tier is not eligible for elite slots")
	}

	listing, err := s.profiles.GetListing(ctx, in.ListingID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if listing.SellerID != in.BuyerID {
		return domain.Reservation{}, errors.WithDetail(domain.ErrForbidden, "listing does not belong to you")
	}
	if listing.Moderation == domain.ModerationRejected {
		return domain.Reservation{}, errors.WithDetail(domain.ErrValidation, "listing was rejected by moderation")
	}

	period, err := s.repo.ActivePeriod(ctx)
	if err != nil {
		return domain.Reservation{}, err
	}

	slot, err := s.repo.GetSlot(ctx, in.SlotID)
	if err != nil {
		return domain.Reservation{}, err
	}
	if !slot.Active {
		return domain.Reservation{}, domain.ErrNotFound
	}

	quote, err := s.pricing.Resolve(ctx, in.SlotID, in.CountryCode)
	if err != nil {
		return domain.Reservation{}, err
	}

	now := s.clock.Now()

	if s.lock != nil {
		ok, err := s.lock.SetHoldLock(ctx, in.SlotID.String(), period.ID.String(), in.BuyerID.String(), s.holdTTL)
		if err == nil && !ok {
			observability.HoldConflicts.Inc()
			return domain.Reservation{}, errors.WithDetail(domain.ErrConflict, "this slot is already reserved")
		}
		// Redis being down is not fatal, the row lock below decides.
	}

	hold := domain.NewHold(in.SlotID, period.ID, in.ListingID, in.BuyerID, quote, normalizedCountry(in.CountryCode, s.pricing.ReferenceCountry()), now, s.holdTTL)

	var superseded []uuid.UUID
	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := s.repo.SweepExpiredHolds(txCtx, period.ID, now); err != nil {
			return err
		}

		occ, err := s.repo.OccupantForUpdate(txCtx, in.SlotID, period.ID)
		if err != nil {
			return err
		}
		if occ != nil && occ.Occupies(now) && !(occ.Status == domain.ReservationHeld && occ.BuyerID == in.BuyerID) {
			return errors.WithDetail(domain.ErrConflict, "this slot is already reserved")
		}

		superseded, err = s.repo.CancelBuyerHeld(txCtx, in.BuyerID, period.ID, "superseded by a new hold")
		if err != nil {
			return err
		}

		return s.repo.InsertReservation(txCtx, hold)
	})
	if err != nil {
		if s.lock != nil {
			_ = s.lock.ReleaseHoldLock(ctx, in.SlotID.String(), period.ID.String())
		}
		if errors.Is(err, domain.ErrConflict) {
			observability.HoldConflicts.Inc()
		}
		return domain.Reservation{}, err
	}

	// Freed slots must also drop their fast-path locks, or other buyers
	// would keep seeing a conflict until the redis TTL runs out.
	if s.lock != nil {
		for _, slotID := range superseded {
			if slotID != in.SlotID {
				_ = s.lock.ReleaseHoldLock(ctx, slotID.String(), period.ID.String())
			}
		}
	}

	observability.HoldsCreated.Inc()
	return hold, nil
}

// CancelHold releases a live hold. Only the owner may cancel, and only
// while the hold is still in the held state and unexpired.
func (s *HoldService) CancelHold(ctx context.Context, reservationID, buyerID uuid.UUID) error {
	now := s.clock.Now()
	var released *domain.Reservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.BuyerID != buyerID {
			return domain.ErrForbidden
		}
		if r.Status != domain.ReservationHeld {
			return errors.WithDetail(domain.ErrConflict, "reservation is not held")
		}
		if r.HoldLapsed(now) {
			return errors.WithDetail(domain.ErrConflict, "your hold has expired")
		}
		if err := s.repo.SetCancelled(txCtx, r.ID, domain.ReservationHeld, "cancelled by buyer"); err != nil {
			return err
		}
		released = r
		return nil
	})
	if err != nil {
		return err
	}

	if s.lock != nil && released != nil {
		_ = s.lock.ReleaseHoldLock(ctx, released.SlotID.String(), released.PeriodID.String())
	}
	return nil
}

func normalizedCountry(country, ref string) string {
	if country == "" {
		return ref
	}
	return strings.ToUpper(country)
}
