package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/velumart/elite-slot/internal/domain"
)

const extensionColumns = `
	id, reservation_id, buyer_id, days, price, currency, status,
	payment_id, invoice_id, created_at`

func scanExtension(row pgx.Row) (*domain.ExtensionRequest, error) {
	var e domain.ExtensionRequest
	err := row.Scan(&e.ID, &e.ReservationID, &e.BuyerID, &e.Days, &e.Price,
		&e.Currency, &e.Status, &e.PaymentID, &e.InvoiceID, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) InsertExtension(ctx context.Context, e domain.ExtensionRequest) error {
	_, err := s.exec(ctx, `
		INSERT INTO extension_requests (`+extensionColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, e.ID, e.ReservationID, e.BuyerID, e.Days, e.Price, e.Currency,
		e.Status, e.PaymentID, e.InvoiceID, e.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return errors.Wrap(err, "insert extension")
}

func (s *Store) GetExtensionForUpdate(ctx context.Context, id uuid.UUID) (*domain.ExtensionRequest, error) {
	return scanExtension(s.queryRow(ctx, `
		SELECT `+extensionColumns+` FROM extension_requests WHERE id = $1 FOR UPDATE
	`, id))
}

func (s *Store) SetExtensionPaid(ctx context.Context, id, paymentID, invoiceID uuid.UUID) error {
	tag, err := s.exec(ctx, `
		UPDATE extension_requests
		SET status = 'pending_admin', payment_id = $2, invoice_id = $3
		WHERE id = $1 AND status = 'pending_payment'
	`, id, paymentID, invoiceID)
	if err != nil {
		return errors.Wrap(err, "set extension paid")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}

func (s *Store) SetExtensionStatus(ctx context.Context, id uuid.UUID, from, to domain.ExtensionStatus) error {
	tag, err := s.exec(ctx, `
		UPDATE extension_requests SET status = $3 WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return errors.Wrap(err, "set extension status")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
