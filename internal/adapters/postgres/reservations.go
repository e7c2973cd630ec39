package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velumart/elite-slot/internal/domain"
)

const reservationColumns = `
	id, slot_id, period_id, listing_id, buyer_id, status, price, currency,
	country_code, price_needs_review, hold_expires_at, confirmed_at,
	cancel_reason, payment_id, invoice_id, reserved_until, created_at`

func scanReservation(row pgx.Row) (*domain.Reservation, error) {
	var r domain.Reservation
	err := row.Scan(
		&r.ID, &r.SlotID, &r.PeriodID, &r.ListingID, &r.BuyerID, &r.Status,
		&r.Price, &r.Currency, &r.CountryCode, &r.PriceNeedsReview,
		&r.HoldExpiresAt, &r.ConfirmedAt, &r.CancelReason, &r.PaymentID,
		&r.InvoiceID, &r.ReservedUntil, &r.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) InsertReservation(ctx context.Context, r domain.Reservation) error {
	_, err := s.exec(ctx, `
		INSERT INTO reservations (`+reservationColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`, r.ID, r.SlotID, r.PeriodID, r.ListingID, r.BuyerID, r.Status,
		r.Price, r.Currency, r.CountryCode, r.PriceNeedsReview,
		r.HoldExpiresAt, r.ConfirmedAt, r.CancelReason, r.PaymentID,
		r.InvoiceID, r.ReservedUntil, r.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return errors.Wrap(err, "insert reservation")
}

func (s *Store) GetReservation(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return scanReservation(s.queryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1
	`, id))
}

func (s *Store) GetReservationForUpdate(ctx context.Context, id uuid.UUID) (*domain.Reservation, error) {
	return scanReservation(s.queryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations WHERE id = $1 FOR UPDATE
	`, id))
}

// OccupantForUpdate locks the non-terminal reservation for a (slot, period)
// pair, if any. Callers must still apply lazy hold expiry to the result.
func (s *Store) OccupantForUpdate(ctx context.Context, slotID, periodID uuid.UUID) (*domain.Reservation, error) {
	r, err := scanReservation(s.queryRow(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE slot_id = $1 AND period_id = $2
		  AND status IN ('held', 'pending_approval', 'confirmed')
		FOR UPDATE
	`, slotID, periodID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return r, err
}

// NonTerminalByPeriod returns every reservation that may occupy a slot in
// the period. Availability readers apply lazy expiry per row.
func (s *Store) NonTerminalByPeriod(ctx context.Context, periodID uuid.UUID) ([]domain.Reservation, error) {
	rows, err := s.query(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE period_id = $1 AND status IN ('held', 'pending_approval', 'confirmed')
	`, periodID)
	if err != nil {
		return nil, errors.Wrap(err, "reservations by period")
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// SweepExpiredHolds flips lapsed holds to expired. Best-effort cleanup for
// reporting clarity; correctness never depends on it having run.
func (s *Store) SweepExpiredHolds(ctx context.Context, periodID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	rows, err := s.query(ctx, `
		UPDATE reservations SET status = 'expired'
		WHERE period_id = $1 AND status = 'held' AND hold_expires_at <= $2
		RETURNING id
	`, periodID, now)
	if err != nil {
		return nil, errors.Wrap(err, "sweep expired holds")
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan swept hold")
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CancelBuyerHeld replaces the buyer's previous hold in the period, keeping
// a single active hold per buyer per period. Returns the slot ids that were
// freed so callers can release their fast-path locks.
func (s *Store) CancelBuyerHeld(ctx context.Context, buyerID, periodID uuid.UUID, reason string) ([]uuid.UUID, error) {
	rows, err := s.query(ctx, `
		UPDATE reservations SET status = 'cancelled', cancel_reason = $3
		WHERE buyer_id = $1 AND period_id = $2 AND status = 'held'
		RETURNING slot_id
	`, buyerID, periodID, reason)
	if err != nil {
		return nil, errors.Wrap(err, "cancel buyer held")
	}
	defer rows.Close()

	var slotIDs []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan cancelled hold")
		}
		slotIDs = append(slotIDs, id)
	}
	return slotIDs, rows.Err()
}

// SetConfirmed moves a reservation to confirmed from the given source
// status. The status guard makes racing transitions commute: whichever
// commits first wins, the other becomes a conflict.
func (s *Store) SetConfirmed(ctx context.Context, id uuid.UUID, from domain.ReservationStatus, at time.Time, paymentID, invoiceID *uuid.UUID) error {
	tag, err := s.exec(ctx, `
		UPDATE reservations
		SET status = 'confirmed', confirmed_at = $3, hold_expires_at = NULL,
		    payment_id = COALESCE($4, payment_id), invoice_id = COALESCE($5, invoice_id)
		WHERE id = $1 AND status = $2
	`, id, from, at, paymentID, invoiceID)
	if err != nil {
		return errors.Wrap(err, "set confirmed")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) SetPendingApproval(ctx context.Context, id uuid.UUID, paymentID, invoiceID uuid.UUID) error {
	tag, err := s.exec(ctx, `
		UPDATE reservations
		SET status = 'pending_approval', hold_expires_at = NULL,
		    payment_id = $2, invoice_id = $3
		WHERE id = $1 AND status = 'held'
	`, id, paymentID, invoiceID)
	if err != nil {
		return errors.Wrap(err, "set pending approval")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) SetCancelled(ctx context.Context, id uuid.UUID, from domain.ReservationStatus, reason string) error {
	tag, err := s.exec(ctx, `
		UPDATE reservations SET status = 'cancelled', cancel_reason = $3
		WHERE id = $1 AND status = $2
	`, id, from, reason)
	if err != nil {
		return errors.Wrap(err, "set cancelled")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

// ApplyReviewedPrice clears the review flag and re-snapshots the amount
// that will actually be charged, so an override approved after the hold
// replaces the auto-converted estimate.
func (s *Store) ApplyReviewedPrice(ctx context.Context, id uuid.UUID, price float64, currency string) error {
	_, err := s.exec(ctx, `
		UPDATE reservations SET price_needs_review = FALSE, price = $2, currency = $3
		WHERE id = $1
	`, id, price, currency)
	return errors.Wrap(err, "apply reviewed price")
}

// ExpireConfirmed ends the visibility of confirmed reservations whose
// effective end has passed. Reservations an extension pushed beyond the
// period end survive rotation until their own end date.
func (s *Store) ExpireConfirmed(ctx context.Context, periodID uuid.UUID, periodEnd, now time.Time) (int64, error) {
	tag, err := s.exec(ctx, `
		UPDATE reservations SET status = 'expired'
		WHERE period_id = $1 AND status = 'confirmed'
		  AND COALESCE(reserved_until, $2) <= $3
	`, periodID, periodEnd, now)
	if err != nil {
		return 0, errors.Wrap(err, "expire confirmed")
	}
	return tag.RowsAffected(), nil
}

// ExpireLapsedExtended ends confirmed reservations that outlived a rotated
// period through an extension, once their extended end date passes. The
// rotation pass only covers the period being rotated; this sweeps the
// stragglers in already-ended periods.
func (s *Store) ExpireLapsedExtended(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.exec(ctx, `
		UPDATE reservations r SET status = 'expired'
		FROM periods p
		WHERE r.period_id = p.id AND p.status = 'ended'
		  AND r.status = 'confirmed'
		  AND COALESCE(r.reserved_until, p.ends_at) <= $1
	`, now)
	if err != nil {
		return 0, errors.Wrap(err, "expire lapsed extended")
	}
	return tag.RowsAffected(), nil
}

func (s *Store) SetReservedUntil(ctx context.Context, id uuid.UUID, until time.Time) error {
	tag, err := s.exec(ctx, `
		UPDATE reservations SET reserved_until = $2
		WHERE id = $1 AND status = 'confirmed'
	`, id, until)
	if err != nil {
		return errors.Wrap(err, "set reserved until")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
