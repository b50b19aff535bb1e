package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/clerk/internal/dedup"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func appleTV() returns.Record {
	return returns.Record{
		Product:      "Apple TV",
		Store:        "Taipei 101",
		PurchaseDate: time.Date(2025, 6, 8, 0, 0, 0, 0, time.UTC),
		ReturnDate:   time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		Price:        returns.MustParseAmount("3300"),
		Currency:     "NTD",
		Reason:       "not working",
	}
}

type recordingNotifier struct {
	mu      sync.Mutex
	results []Result
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, res Result) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.results = append(n.results, res)
	return n.err
}

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (returns.Record, error) {
	return returns.Record{}, f.err
}

func (f failingStore) InsertIfAbsent(context.Context, returns.Record) (returns.Record, bool, error) {
	return returns.Record{}, false, f.err
}

// blockingStore waits for the context to end.
type blockingStore struct{}

func (blockingStore) Get(ctx context.Context, _ string) (returns.Record, error) {
	<-ctx.Done()
	return returns.Record{}, ctx.Err()
}

func (blockingStore) InsertIfAbsent(ctx context.Context, _ returns.Record) (returns.Record, bool, error) {
	<-ctx.Done()
	return returns.Record{}, false, ctx.Err()
}

func TestCommit_ThenDuplicate(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	notifier := &recordingNotifier{}
	g := New(mem, time.Second, discardLogger(), notifier)

	first, err := g.Commit(ctx, appleTV())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, first.Outcome)
	assert.Equal(t, dedup.Key(appleTV()), first.DedupKey)
	assert.Equal(t, first.DedupKey, first.Record.DedupKey)
	assert.NotZero(t, first.Record.Seq)

	// Resubmission with a different reason and casing: rejected, no new row.
	again := appleTV()
	again.Product = "apple tv "
	again.Reason = "changed my mind"
	second, err := g.Commit(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, second.Outcome)
	assert.Equal(t, first.Record.ID, second.Record.ID)
	assert.Equal(t, "not working", second.Record.Reason)

	n, _ := mem.Count(ctx)
	assert.Equal(t, 1, n)

	require.Len(t, notifier.results, 2)
	assert.Equal(t, OutcomeCommitted, notifier.results[0].Outcome)
	assert.Equal(t, OutcomeDuplicate, notifier.results[1].Outcome)

	got, err := g.Lookup(ctx, first.DedupKey)
	require.NoError(t, err)
	assert.Equal(t, first.Record.ID, got.ID)
}

func TestCommit_ConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	g := New(mem, time.Second, discardLogger())

	const workers = 20
	outcomes := make(chan Outcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := appleTV()
			if i%2 == 0 {
				r.Product = strings.ToUpper(r.Product)
			}
			res, err := g.Commit(ctx, r)
			assert.NoError(t, err)
			outcomes <- res.Outcome
		}(i)
	}
	wg.Wait()
	close(outcomes)

	counts := map[Outcome]int{}
	for o := range outcomes {
		counts[o]++
	}
	assert.Equal(t, 1, counts[OutcomeCommitted])
	assert.Equal(t, workers-1, counts[OutcomeDuplicate])

	n, _ := mem.Count(ctx)
	assert.Equal(t, 1, n)
}

func TestCommit_Incomplete(t *testing.T) {
	mem := store.NewMemory()
	g := New(mem, time.Second, discardLogger())

	r := appleTV()
	r.Store = ""
	r.ReturnDate = time.Time{}

	_, err := g.Commit(context.Background(), r)
	require.ErrorIs(t, err, returns.ErrIncomplete)
	assert.Contains(t, err.Error(), "store and return date")

	n, _ := mem.Count(context.Background())
	assert.Zero(t, n)
}

func TestCommit_Invalid(t *testing.T) {
	mem := store.NewMemory()
	g := New(mem, time.Second, discardLogger())

	r := appleTV()
	r.ReturnDate = r.PurchaseDate.AddDate(0, 0, -1)

	_, err := g.Commit(context.Background(), r)
	require.ErrorIs(t, err, returns.ErrValidation)

	var verr *returns.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, returns.FieldReturnDate, verr.Field)

	n, _ := mem.Count(context.Background())
	assert.Zero(t, n)
}

func TestCommit_StoreUnavailable(t *testing.T) {
	cause := errors.New("connection refused")
	notifier := &recordingNotifier{}
	g := New(failingStore{err: cause}, time.Second, discardLogger(), notifier)

	_, err := g.Commit(context.Background(), appleTV())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Empty(t, notifier.results)
}

func TestCommit_Timeout(t *testing.T) {
	g := New(blockingStore{}, 20*time.Millisecond, discardLogger())

	start := time.Now()
	_, err := g.Commit(context.Background(), appleTV())
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCommit_NotifierFailureDoesNotChangeOutcome(t *testing.T) {
	notifier := &recordingNotifier{err: errors.New("slack down")}
	g := New(store.NewMemory(), time.Second, discardLogger(), notifier)

	res, err := g.Commit(context.Background(), appleTV())
	require.NoError(t, err)
	assert.Equal(t, OutcomeCommitted, res.Outcome)
	assert.Len(t, notifier.results, 1)
}
