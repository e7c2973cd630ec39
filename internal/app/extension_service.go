package app

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/velumart/elite-slot/internal/clock"
	"github.com/velumart/elite-slot/internal/domain"
)

type ExtensionRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error)
	GetPeriod(ctx context.Context, id uuid.UUID) (*domain.Period, error)
	SetReservedUntil(ctx context.Context, id uuid.UUID, until time.Time) error
	InsertExtension(ctx context.Context, e domain.ExtensionRequest) error
	GetExtensionForUpdate(ctx context.Context, id uuid.UUID) (*domain.ExtensionRequest, error)
	SetExtensionPaid(ctx context.Context, id, paymentID, invoiceID uuid.UUID) error
	SetExtensionStatus(ctx context.Context, id uuid.UUID, from, to domain.ExtensionStatus) error
	InsertPayment(ctx context.Context, p domain.Payment) error
	NextInvoiceSeq(ctx context.Context, prefix string, year int) (int, error)
	InsertInvoice(ctx context.Context, inv domain.Invoice) error
}

// ExtensionService sells extra days past the period end for a confirmed
// reservation: request, pay, then admin sign-off. Extensions only move the
// reservation's own end date, never the period's, and are never allowed to
// resurrect an already-expired reservation.
type ExtensionService struct {
	repo          ExtensionRepository
	notifier      Notifier
	clock         clock.Clock
	dayPrice      float64
	currency      string
	invoicePrefix string
}

func NewExtensionService(repo ExtensionRepository, notifier Notifier, clk clock.Clock, dayPrice float64, currency, invoicePrefix string) *ExtensionService {
	return &ExtensionService{
		repo:          repo,
		notifier:      notifier,
		clock:         clk,
		dayPrice:      dayPrice,
		currency:      currency,
		invoicePrefix: invoicePrefix,
	}
}

func (s *ExtensionService) Request(ctx context.Context, reservationID, buyerID uuid.UUID, days int) (domain.ExtensionRequest, error) {
	if days <= 0 || days > 365 {
		return domain.ExtensionRequest{}, domain.ErrValidation
	}

	var ext domain.ExtensionRequest
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		r, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if r.BuyerID != buyerID {
			return domain.ErrForbidden
		}
		if r.Status != domain.ReservationConfirmed {
			return errors.WithDetail(domain.ErrConflict, "only confirmed reservations can be extended")
		}

		ext = domain.NewExtensionRequest(reservationID, buyerID, days, s.dayPrice, s.currency, s.clock.Now())
		// Partial unique index rejects a second non-terminal request.
		if err := s.repo.InsertExtension(txCtx, ext); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				return errors.WithDetail(domain.ErrConflict, "an extension request is already open for this reservation")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return domain.ExtensionRequest{}, err
	}
	return ext, nil
}

func (s *ExtensionService) Pay(ctx context.Context, extensionID, buyerID uuid.UUID, method string) (string, error) {
	if method == "" {
		return "", domain.ErrValidation
	}
	now := s.clock.Now()
	var invoiceNumber string

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ext, err := s.repo.GetExtensionForUpdate(txCtx, extensionID)
		if err != nil {
			return err
		}
		if ext.BuyerID != buyerID {
			return domain.ErrForbidden
		}
		if ext.Status != domain.ExtensionPendingPayment {
			return errors.WithDetail(domain.ErrConflict, "extension is not awaiting payment")
		}

		payment := domain.Payment{
			ID:        uuid.New(),
			BuyerID:   buyerID,
			Amount:    ext.Price,
			Currency:  ext.Currency,
			Method:    method,
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
		invoiceNumber = invoice.Number

		return s.repo.SetExtensionPaid(txCtx, ext.ID, payment.ID, invoice.ID)
	})
	if err != nil {
		return "", err
	}

	if s.notifier != nil {
		s.notifier.Admins(ctx, "extension_awaiting_approval", map[string]interface{}{
			"extension_id": extensionID.String(),
		})
	}
	return invoiceNumber, nil
}

// Approve moves the reservation's effective end to
// max(current effective end, period end) + days. Other slots and the
// period itself are untouched.
func (s *ExtensionService) Approve(ctx context.Context, extensionID uuid.UUID) error {
	var buyerID uuid.UUID

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ext, err := s.repo.GetExtensionForUpdate(txCtx, extensionID)
		if err != nil {
			return err
		}
		if ext.Status != domain.ExtensionPendingAdmin {
			return errors.WithDetail(domain.ErrConflict, "extension is not awaiting approval")
		}

		r, err := s.repo.GetReservationForUpdate(txCtx, ext.ReservationID)
		if err != nil {
			return err
		}
		if r.Status != domain.ReservationConfirmed {
			return errors.WithDetail(domain.ErrConflict, "reservation is no longer confirmed")
		}

		period, err := s.repo.GetPeriod(txCtx, r.PeriodID)
		if err != nil {
			return err
		}
		until := r.EffectiveEnd(period.EndsAt).Add(time.Duration(ext.Days) * 24 * time.Hour)
		if err := s.repo.SetReservedUntil(txCtx, r.ID, until); err != nil {
			return err
		}

		buyerID = ext.BuyerID
		return s.repo.SetExtensionStatus(txCtx, ext.ID, domain.ExtensionPendingAdmin, domain.ExtensionApproved)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.User(ctx, buyerID, "extension_approved", map[string]interface{}{
			"extension_id": extensionID.String(),
		})
	}
	return nil
}

func (s *ExtensionService) Reject(ctx context.Context, extensionID uuid.UUID, reason string) error {
	if reason == "" {
		reason = "rejected by administrator"
	}
	var buyerID uuid.UUID

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ext, err := s.repo.GetExtensionForUpdate(txCtx, extensionID)
		if err != nil {
			return err
		}
		if ext.Status != domain.ExtensionPendingAdmin {
			return errors.WithDetail(domain.ErrConflict, "extension is not awaiting approval")
		}
		buyerID = ext.BuyerID
		return s.repo.SetExtensionStatus(txCtx, ext.ID, domain.ExtensionPendingAdmin, domain.ExtensionRejected)
	})
	if err != nil {
		return err
	}

	if s.notifier != nil {
		s.notifier.User(ctx, buyerID, "extension_rejected", map[string]interface{}{
			"extension_id": extensionID.String(),
			"reason":       reason,
		})
	}
	return nil
}
