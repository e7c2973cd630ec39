package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/domain"
)

type ApprovalRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	SetConfirmed(ctx context.Context, id uuid.UUID, from domain.ReservationStatus, at time.Time, paymentID, invoiceID *uuid.UUID) error
	SetCancelled(ctx context.Context, id uuid.UUID, from domain.ReservationStatus, reason string) error
}

// ApprovalService is the administrative side of the dual gate: a paid
// reservation stays pending until its listing passes moderation and an
// administrator signs off.
type ApprovalService struct {
	repo     ApprovalRepository
	profiles ProfileSource
	notifier Notifier
	lock     HoldLock
	clock    clock.Clock
}

func NewApprovalService(repo ApprovalRepository, profiles ProfileSource, notifier Notifier, lock HoldLock, clk clock.Clock) *ApprovalService {
	return &ApprovalService{repo: repo, profiles: profiles, notifier: notifier, lock: lock, clock: clk}
}

// Approve flips pending_approval to confirmed. The listing's moderation
// state is re-read at this moment; anything but approved blocks the
// transition with no mutation.
func (s *ApprovalService) Approve(ctx context.Context, reservationID uuid.UUID) error {
	now := s.clock.Now()
	var buyerID uuid.UUID

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationPendingApproval {
			return errors.WithDetail(domain.ErrConflict, "reservation is not pending approval")
		}

		listing, err := s.profiles.GetListing(txCtx, r.ListingID)
		if err != nil {
			return err
		}
		if listing.Moderation != domain.ModerationApproved {
			return domain.ErrModerationPending
		}

		buyerID = r.BuyerID
		return s.repo.SetConfirmed(txCtx, r.ID, domain.ReservationPendingApproval, now, nil, nil)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.User(ctx, buyerID, "reservation_approved", map[string]interface{}{
			"reservation_id": reservationID.String(),
		})
	}
	return nil
}

// Reject cancels a pending or held reservation. Money already taken is not
// reversed here; financial reversal is an external process.
func (s *ApprovalService) Reject(ctx context.Context, reservationID uuid.UUID, reason string) error {
	if reason == "" {
		reason = "rejected by administrator"
	}
	var (
		buyerID uuid.UUID
		freed   *domain.Reservation
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationPendingApproval && r.Status != domain.ReservationHeld {
			return errors.WithDetail(domain.ErrConflict, "reservation cannot be rejected in its current state")
		}
		buyerID = r.BuyerID
		freed = r
		return s.repo.SetCancelled(txCtx, r.ID, r.Status, reason)
	})
	if err != nil {
		return err
	}

	s.releaseLock(ctx, freed)
	if s.notifier != nil {
		s.notifier.User(ctx, buyerID, "reservation_rejected", map[string]interface{}{
			"reservation_id": reservationID.String(),
			"reason":         reason,
		})
	}
	return nil
}

// CancelConfirmed is the admin takedown path for a live reservation, e.g.
// when the attached listing is removed.
func (s *ApprovalService) CancelConfirmed(ctx context.Context, reservationID uuid.UUID, reason string) error {
	if reason == "" {
		reason = "cancelled by administrator"
	}
	var (
		buyerID uuid.UUID
		freed   *domain.Reservation
	)

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationConfirmed {
			return errors.WithDetail(domain.ErrConflict, "reservation is not confirmed")
		}
		buyerID = r.BuyerID
		freed = r
		return s.repo.SetCancelled(txCtx, r.ID, domain.ReservationConfirmed, reason)
	})
	if err != nil {
		return err
	}

	s.releaseLock(ctx, freed)
	if s.notifier != nil {
		s.notifier.User(ctx, buyerID, "reservation_cancelled", map[string]interface{}{
			"reservation_id": reservationID.String(),
			"reason":         reason,
		})
	}
	return nil
}

// releaseLock drops the redis fast-path lock for a reservation whose slot
// just became free. The lock may already have expired; that is fine.
func (s *ApprovalService) releaseLock(ctx context.Context, r *domain.Reservation) {
	if s.lock == nil || r == nil {
		return
	}
	_ = s.lock.ReleaseHoldLock(ctx, r.SlotID.String(), r.PeriodID.String())
}
