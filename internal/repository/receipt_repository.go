package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// nextReceiptSeq atomically advances and returns the receipt sequence for a
// calendar year. The counter row is created on first use, so sequences start
// at 1 each year regardless of any prior year's count. It participates in
// the caller's transaction: a rolled-back payment never consumes a number.
func nextReceiptSeq(ctx context.Context, q sqlx.QueryerContext, year int) (int, error) {
	const query = `INSERT INTO receipt_sequences (year, last_seq) VALUES ($1, 1)
        ON CONFLICT (year) DO UPDATE SET last_seq = receipt_sequences.last_seq + 1
        RETURNING last_seq`
	var seq int
	if err := sqlx.GetContext(ctx, q, &seq, query, year); err != nil {
		return 0, fmt.Errorf("next receipt sequence for %d: %w", year, err)
	}
	return seq, nil
}
