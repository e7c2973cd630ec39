package postgres

import (
	"context"
	"hash/fnv"

	"github.com/cockroachdb/errors"
	"github.com/velumart/elite-slot/internal/domain"
	"github.com/velumart/elite-slot/internal/observability"
)

func (s *Store) InsertPayment(ctx context.Context, p domain.Payment) error {
	_, err := s.exec(ctx, `
		INSERT INTO payments (id, buyer_id, amount, currency, method, reference, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.BuyerID, p.Amount, p.Currency, p.Method, p.Reference, p.CreatedAt)
	return errors.Wrap(err, "insert payment")
}

// NextInvoiceSeq allocates the next sequential invoice number for a year.
// It must run inside WithTx: a year-scoped pg_advisory_xact_lock serializes
// concurrent allocations so MAX(seq)+1 can never be observed twice, and the
// lock rides the transaction, releasing at commit right after the number is
// persisted.
func (s *Store) NextInvoiceSeq(ctx context.Context, prefix string, year int) (int, error) {
	if txFromContext(ctx) == nil {
		return 0, errors.New("invoice numbering requires a transaction")
	}

	h := fnv.New32a()
	h.Write([]byte(prefix))
	lockKey := int64(h.Sum32())<<16 | int64(year)
	if _, err := s.exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
		return 0, errors.Wrap(err, "acquire invoice lock")
	}

	var seq int
	err := s.queryRow(ctx, `
		SELECT COALESCE(MAX(seq), 0) + 1 FROM invoices WHERE year = $1
	`, year).Scan(&seq)
	if err != nil {
		return 0, errors.Wrap(err, "next invoice seq")
	}
	return seq, nil
}

func (s *Store) InsertInvoice(ctx context.Context, inv domain.Invoice) error {
	_, err := s.exec(ctx, `
		INSERT INTO invoices (id, number, year, seq, payment_id, amount, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, inv.ID, inv.Number, inv.Year, inv.Seq, inv.PaymentID, inv.Amount, inv.Currency, inv.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err == nil {
		observability.InvoicesIssued.Inc()
	}
	return errors.Wrap(err, "insert invoice")
}
