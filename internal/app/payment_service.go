package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/domain"
	"github.com/velumart/elite-slot/internal/observability"
)

type PaymentRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	SetConfirmed(ctx context.Context, id uuid.UUID, from domain.ReservationStatus, at time.Time, paymentID, invoiceID *uuid.UUID) error
	SetPendingApproval(ctx context.Context, id uuid.UUID, paymentID, invoiceID uuid.UUID) error
	ApplyReviewedPrice(ctx context.Context, id uuid.UUID, price float64, currency string) error
	GetOverride(ctx context.Context, slotID uuid.UUID, country string) (*domain.PriceOverride, error)
	InsertPayment(ctx context.Context, p domain.Payment) error
	NextInvoiceSeq(ctx context.Context, prefix string, year int) (int, error)
	InsertInvoice(ctx context.Context, inv domain.Invoice) error
}

// PaymentService converts a live hold into a paid reservation. Repeated
// confirmations are rejected rather than silently repeated; the payment
// record and invoice are created exactly once, inside the same transaction
// that flips the status.
type PaymentService struct {
	repo          PaymentRepository
	profiles      ProfileSource
	notifier      Notifier
	clock         clock.Clock
	invoicePrefix string
	refCountry    string
}

func NewPaymentService(repo PaymentRepository, profiles ProfileSource, notifier Notifier, clk clock.Clock, invoicePrefix, refCountry string) *PaymentService {
	return &PaymentService{
		repo:          repo,
		profiles:      profiles,
		notifier:      notifier,
		clock:         clk,
		invoicePrefix: invoicePrefix,
		refCountry:    refCountry,
	}
}

type ConfirmPaymentInput struct {
	ReservationID uuid.UUID
	BuyerID       uuid.UUID
	Method        string
}

type ConfirmPaymentResult struct {
	Reservation   domain.Reservation
	InvoiceNumber string
}

func (s *PaymentService) ConfirmPayment(ctx context.Context, in ConfirmPaymentInput) (*ConfirmPaymentResult, error) {
	if in.ReservationID == uuid.Nil || in.Method == "" {
		return nil, domain.ErrValidation
	}

	// Moderation is read before the transaction so the row lock is not
	// held across a collaborator call. The listing id on a reservation is
	// immutable, so the pre-read cannot go stale.
	pre, err := s.repo.GetReservation(ctx, in.ReservationID)
	if err != nil {
		return nil, err
	}
	listing, err := s.profiles.GetListing(ctx, pre.ListingID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var (
		result ConfirmPaymentResult
		toward domain.ReservationStatus
	)

	err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, in.ReservationID)
		if err != nil {
			return err
		}
		if r.BuyerID != in.BuyerID {
			return domain.ErrForbidden
		}
		if r.Status != domain.ReservationHeld {
			return errors.WithDetail(domain.ErrConflict, "reservation is not awaiting payment")
		}
		if r.HoldLapsed(now) {
			return errors.WithDetail(domain.ErrConflict, "your hold has expired")
		}

		if r.PriceNeedsReview {
			if err := s.resolveReview(txCtx, r); err != nil {
				return err
			}
		}

		payment := domain.Payment{
			ID:        uuid.New(),
			BuyerID:   r.BuyerID,
			Amount:    r.Price,
			Currency:  r.Currency,
			Method:    in.Method,
			Reference: uuid.New().String(),
			CreatedAt: now,
		}
		if err := s.repo.InsertPayment(txCtx, payment); err != nil {
			return err
		}

		seq, err := s.repo.NextInvoiceSeq(txCtx, s.invoicePrefix, now.Year())
		if err != nil {
			return err
		}
		invoice := domain.Invoice{
			ID:        uuid.New(),
			Number:    domain.InvoiceNumber(s.invoicePrefix, now.Year(), seq),
			Year:      now.Year(),
			Seq:       seq,
			PaymentID: payment.ID,
			Amount:    payment.Amount,
			Currency:  payment.Currency,
			CreatedAt: now,
		}
		if err := s.repo.InsertInvoice(txCtx, invoice); err != nil {
			return err
		}

		if listing.Moderation == domain.ModerationApproved {
			toward = domain.ReservationConfirmed
			err = s.repo.SetConfirmed(txCtx, r.ID, domain.ReservationHeld, now, &payment.ID, &invoice.ID)
		} else {
			toward = domain.ReservationPendingApproval
			err = s.repo.SetPendingApproval(txCtx, r.ID, payment.ID, invoice.ID)
		}
		if err != nil {
			return err
		}

		updated := *r
		updated.Status = toward
		updated.HoldExpiresAt = nil
		updated.PaymentID = &payment.ID
		updated.InvoiceID = &invoice.ID
		if toward == domain.ReservationConfirmed {
			updated.ConfirmedAt = &now
		}
		result = ConfirmPaymentResult{Reservation: updated, InvoiceNumber: invoice.Number}
		return nil
	})
	if err != nil {
		return nil, err
	}

	observability.ReservationsConfirmed.WithLabelValues(string(toward)).Inc()
	if s.notifier != nil {
		if toward == domain.ReservationConfirmed {
			s.notifier.User(ctx, in.BuyerID, "reservation_confirmed", map[string]interface{}{
				"reservation_id": in.ReservationID.String(),
				"invoice":        result.InvoiceNumber,
			})
		} else {
			s.notifier.User(ctx, in.BuyerID, "reservation_pending_approval", map[string]interface{}{
				"reservation_id": in.ReservationID.String(),
			})
			s.notifier.Admins(ctx, "dual_signoff_required", map[string]interface{}{
				"reservation_id": in.ReservationID.String(),
				"listing_id":     pre.ListingID.String(),
			})
		}
	}
	return &result, nil
}

// resolveReview re-resolves a flagged price at payment time. An override
// approved since the hold clears the flag and replaces the auto-converted
// snapshot with the override amount, so the buyer is charged the reviewed
// price. Without an override payment is refused, so an unreviewed
// auto-converted charge can never settle.
func (s *PaymentService) resolveReview(ctx context.Context, r *domain.Reservation) error {
	if r.CountryCode == s.refCountry {
		r.PriceNeedsReview = false
		return s.repo.ApplyReviewedPrice(ctx, r.ID, r.Price, r.Currency)
	}
	override, err := s.repo.GetOverride(ctx, r.SlotID, r.CountryCode)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ErrPendingReview
	}
	if err != nil {
		return err
	}
	r.Price = override.Price
	r.Currency = override.Currency
	r.PriceNeedsReview = false
	return s.repo.ApplyReviewedPrice(ctx, r.ID, r.Price, r.Currency)
}
