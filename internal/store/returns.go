package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

const recordColumns = `id, seq, product, store, purchase_date, return_date, price_minor, currency,
	reason, category, city, country, dedup_key, created_at`

// InsertIfAbsent writes r unless a return with the same dedup key exists.
// The check and the write are one statement, so concurrent callers with the
// same key see exactly one insert. It returns the stored record and whether
// this call inserted it.
func (s *Store) InsertIfAbsent(ctx context.Context, r returns.Record) (returns.Record, bool, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO returns (id, product, store, purchase_date, return_date, price_minor, currency,
			reason, category, city, country, dedup_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (dedup_key) DO NOTHING
		RETURNING seq, created_at`,
		r.ID, r.Product, r.Store, r.PurchaseDate, r.ReturnDate, int64(r.Price), r.Currency,
		r.Reason, r.Category, r.City, r.Country, r.DedupKey,
	)

	err := row.Scan(&r.Seq, &r.CreatedAt)
	if err == nil {
		return r, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return returns.Record{}, false, fmt.Errorf("insert return: %w", err)
	}

	existing, err := s.Get(ctx, r.DedupKey)
	if err != nil {
		return returns.Record{}, false, fmt.Errorf("load existing return: %w", err)
	}
	return existing, false, nil
}

// Get fetches a return by dedup key.
func (s *Store) Get(ctx context.Context, dedupKey string) (returns.Record, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM returns WHERE dedup_key = $1`, dedupKey)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return returns.Record{}, ErrNotFound
	}
	if err != nil {
		return returns.Record{}, fmt.Errorf("get return: %w", err)
	}
	return r, nil
}

// Count returns the number of stored returns.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM returns`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count returns: %w", err)
	}
	return n, nil
}

// Aggregate counts the returns of a window and sums their prices per currency.
func (s *Store) Aggregate(ctx context.Context, w Window) (Summary, error) {
	product := ""
	if w.Product != "" {
		product = likePattern(w.Product)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT currency, count(*), COALESCE(sum(price_minor), 0)
		FROM returns
		WHERE return_date BETWEEN $1 AND $2
		  AND ($3 = '' OR product ILIKE $3)
		GROUP BY currency`,
		dayOf(w.From), dayOf(w.To), product,
	)
	if err != nil {
		return Summary{}, fmt.Errorf("aggregate returns: %w", err)
	}
	defer rows.Close()

	sum := Summary{Loss: make(map[string]returns.Amount)}
	for rows.Next() {
		var (
			currency string
			count    int
			total    int64
		)
		if err := rows.Scan(&currency, &count, &total); err != nil {
			return Summary{}, fmt.Errorf("scan aggregate: %w", err)
		}
		sum.Count += count
		sum.Loss[currency] = returns.Amount(total)
	}
	return sum, rows.Err()
}

// DailyCounts returns per-day return counts between from and to inclusive.
// Days without returns are omitted.
func (s *Store) DailyCounts(ctx context.Context, from, to time.Time) ([]DailyCount, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT return_date, count(*)
		FROM returns
		WHERE return_date BETWEEN $1 AND $2
		GROUP BY return_date
		ORDER BY return_date`,
		dayOf(from), dayOf(to),
	)
	if err != nil {
		return nil, fmt.Errorf("daily counts: %w", err)
	}
	defer rows.Close()

	var out []DailyCount
	for rows.Next() {
		var dc DailyCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("scan daily count: %w", err)
		}
		dc.Day = dayOf(dc.Day)
		out = append(out, dc)
	}
	return out, rows.Err()
}

// Search returns the most recent returns whose product, store or reason
// contains any of terms.
func (s *Store) Search(ctx context.Context, terms []string, limit int) ([]returns.Record, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	patterns := make([]string, len(terms))
	for i, t := range terms {
		patterns[i] = likePattern(t)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM returns
		WHERE product ILIKE ANY($1) OR store ILIKE ANY($1) OR reason ILIKE ANY($1)
		ORDER BY created_at DESC, seq DESC
		LIMIT $2`,
		patterns, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("search returns: %w", err)
	}
	defer rows.Close()

	var out []returns.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan return: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (returns.Record, error) {
	var (
		r     returns.Record
		price int64
	)
	err := row.Scan(&r.ID, &r.Seq, &r.Product, &r.Store, &r.PurchaseDate, &r.ReturnDate, &price,
		&r.Currency, &r.Reason, &r.Category, &r.City, &r.Country, &r.DedupKey, &r.CreatedAt)
	if err != nil {
		return returns.Record{}, err
	}
	r.Price = returns.Amount(price)
	r.PurchaseDate = dayOf(r.PurchaseDate)
	r.ReturnDate = dayOf(r.ReturnDate)
	return r, nil
}
