package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func record(key, product string, ret time.Time, price returns.Amount, currency string) returns.Record {
	return returns.Record{
		Product:      product,
		Store:        "IKEA",
		PurchaseDate: ret.AddDate(0, 0, -7),
		ReturnDate:   ret,
		Price:        price,
		Currency:     currency,
		Reason:       "broken",
		DedupKey:     key,
	}
}

func TestMemory_InsertIfAbsent(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	first, inserted, err := m.InsertIfAbsent(ctx, record("k1", "Kettle", day(2025, 6, 1), 2000, "EUR"))
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.EqualValues(t, 1, first.Seq)
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())

	again, inserted, err := m.InsertIfAbsent(ctx, record("k1", "Kettle (retry)", day(2025, 6, 1), 2000, "EUR"))
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first, again)

	n, _ := m.Count(ctx)
	assert.Equal(t, 1, n)

	got, err := m.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, "Kettle", got.Product)

	_, err = m.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_SeqAndCreatedAtMonotonic(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return frozen }

	a, _, _ := m.InsertIfAbsent(ctx, record("a", "A", day(2025, 6, 1), 100, "USD"))
	b, _, _ := m.InsertIfAbsent(ctx, record("b", "B", day(2025, 6, 1), 100, "USD"))

	assert.Greater(t, b.Seq, a.Seq)
	assert.True(t, b.CreatedAt.After(a.CreatedAt))
}

func TestMemory_ConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	const workers = 32
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := m.InsertIfAbsent(ctx, record("same", "Kettle", day(2025, 6, 1), 2000, "EUR"))
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, inserted)
	n, _ := m.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestMemory_Aggregate(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for _, r := range []returns.Record{
		record("1", "Apple TV", day(2025, 6, 1), 330000, "NTD"),
		record("2", "Apple Watch", day(2025, 6, 3), 1200000, "NTD"),
		record("3", "Kettle", day(2025, 6, 3), 2000, "EUR"),
		record("4", "Kettle", day(2025, 5, 1), 2000, "EUR"),
	} {
		_, _, err := m.InsertIfAbsent(ctx, r)
		require.NoError(t, err)
	}

	sum, err := m.Aggregate(ctx, Window{From: day(2025, 6, 1), To: day(2025, 6, 30)})
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Count)
	assert.Equal(t, returns.Amount(1530000), sum.Loss["NTD"])
	assert.Equal(t, returns.Amount(2000), sum.Loss["EUR"])

	sum, err = m.Aggregate(ctx, Window{From: day(2025, 1, 1), To: day(2025, 12, 31), Product: "apple"})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Count)
	assert.NotContains(t, sum.Loss, "EUR")
}

func TestMemory_DailyCounts(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i, d := range []time.Time{day(2025, 6, 3), day(2025, 6, 1), day(2025, 6, 3), day(2025, 7, 1)} {
		_, _, err := m.InsertIfAbsent(ctx, record(string(rune('a'+i)), "X", d, 100, "USD"))
		require.NoError(t, err)
	}

	got, err := m.DailyCounts(ctx, day(2025, 6, 1), day(2025, 6, 30))
	require.NoError(t, err)
	assert.Equal(t, []DailyCount{
		{Day: day(2025, 6, 1), Count: 1},
		{Day: day(2025, 6, 3), Count: 2},
	}, got)
}

func TestMemory_SearchMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i, p := range []string{"Sony headphones", "Kettle", "Bose headphones", "Beats headphones"} {
		_, _, err := m.InsertIfAbsent(ctx, record(string(rune('a'+i)), p, day(2025, 6, 1), 100, "USD"))
		require.NoError(t, err)
	}

	got, err := m.Search(ctx, []string{"HEADPHONES"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Beats headphones", got[0].Product)
	assert.Equal(t, "Bose headphones", got[1].Product)

	got, err = m.Search(ctx, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%50\% off\_sale%`, likePattern("50% off_sale"))
}
