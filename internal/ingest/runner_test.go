package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/clerk/internal/gateway"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

type recordingAnnouncer struct {
	texts []string
}

func (a *recordingAnnouncer) PostThread(_ context.Context, _, _, text string) (string, error) {
	a.texts = append(a.texts, text)
	return "1.1", nil
}

// outageCommitter fails with a store outage on the n-th commit.
type outageCommitter struct {
	next    Committer
	failAt  int
	commits int
}

func (o *outageCommitter) Commit(ctx context.Context, r returns.Record) (gateway.Result, error) {
	o.commits++
	if o.commits == o.failAt {
		return gateway.Result{}, gateway.ErrStoreUnavailable
	}
	return o.next.Commit(ctx, r)
}

func TestRun_ImportsAndSkips(t *testing.T) {
	dir := t.TempDir()
	file := writeCSV(t, dir, "returns.csv", sampleCSV+
		"Apple TV,Electronics,Taipei 101,Taipei,Taiwan,2025-06-08,2025-06-15,remote missing,3300,NTD,\n"+
		"Freebie,,IKEA,,,2025-05-01,2025-05-03,leaking,0,EUR,\n")

	mem := store.NewMemory()
	gw := gateway.New(mem, time.Second, discardLogger())
	ann := &recordingAnnouncer{}
	r := NewRunner(Config{Files: []string{file}, StatePath: filepath.Join(dir, "state.json")}, gw, ann, discardLogger())

	sum, err := r.Run(context.Background())
	require.NoError(t, err)

	// Same six fields with a different reason is a duplicate; a zero price
	// fails validation.
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 2, sum.Skipped)

	n, err := mem.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Len(t, ann.texts, 1)
	assert.Contains(t, ann.texts[0], "2 inserted, 1 duplicates, 2 skipped")

	// A second run skips the processed file entirely.
	sum, err = r.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sum.Files)
}

func TestRun_ReimportIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	file := writeCSV(t, dir, "returns.csv", sampleCSV)
	mem := store.NewMemory()
	gw := gateway.New(mem, time.Second, discardLogger())

	_, err := NewRunner(Config{Files: []string{file}, StatePath: filepath.Join(dir, "a.json")}, gw, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)

	// Fresh state: every row is re-read and rejected as a duplicate.
	sum, err := NewRunner(Config{Files: []string{file}, StatePath: filepath.Join(dir, "b.json")}, gw, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sum.Inserted)
	assert.Equal(t, 2, sum.Duplicates)

	n, err := mem.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_StoreOutageResumes(t *testing.T) {
	dir := t.TempDir()
	file := writeCSV(t, dir, "returns.csv", sampleCSV)
	statePath := filepath.Join(dir, "state.json")

	mem := store.NewMemory()
	gw := gateway.New(mem, time.Second, discardLogger())
	flaky := &outageCommitter{next: gw, failAt: 2}

	sum, err := NewRunner(Config{Files: []string{file}, StatePath: statePath}, flaky, nil, discardLogger()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, gateway.ErrStoreUnavailable))
	assert.Equal(t, 1, sum.Inserted)

	st, err := LoadState(statePath)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Resume(file))
	assert.False(t, st.IsProcessed(file))

	sum, err = NewRunner(Config{Files: []string{file}, StatePath: statePath}, gw, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Inserted)
	assert.Equal(t, 0, sum.Duplicates)
	assert.Equal(t, 1, sum.Skipped)

	n, err := mem.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	dir := t.TempDir()
	file := writeCSV(t, dir, "returns.csv", sampleCSV)
	statePath := filepath.Join(dir, "state.json")
	mem := store.NewMemory()
	gw := gateway.New(mem, time.Second, discardLogger())

	sum, err := NewRunner(Config{Files: []string{file}, StatePath: statePath, DryRun: true}, gw, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, sum.DryRun)
	assert.Equal(t, 2, sum.Inserted)
	assert.Equal(t, 1, sum.Skipped)

	n, err := mem.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = os.Stat(statePath)
	assert.True(t, os.IsNotExist(err))
}

func TestRun_MissingFile(t *testing.T) {
	dir := t.TempDir()
	gw := gateway.New(store.NewMemory(), time.Second, discardLogger())
	_, err := NewRunner(Config{Files: []string{filepath.Join(dir, "nope.csv")}, StatePath: filepath.Join(dir, "s.json")}, gw, nil, discardLogger()).Run(context.Background())
	assert.Error(t, err)
}

func TestRun_RandomRowsAllInserted(t *testing.T) {
	faker := gofakeit.New(7)
	dir := t.TempDir()

	content := "product,store,purchase_date,return_date,price,currency,reason\n"
	for i := 0; i < 25; i++ {
		purchase := faker.DateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC))
		content += faker.UUID() + "," +
			strings.ReplaceAll(faker.Company(), ",", "") + "," +
			purchase.Format("2006-01-02") + "," +
			purchase.AddDate(0, 0, faker.Number(0, 30)).Format("2006-01-02") + "," +
			"12.50,USD,defective\n"
	}
	file := writeCSV(t, dir, "fake.csv", content)

	mem := store.NewMemory()
	gw := gateway.New(mem, time.Second, discardLogger())
	sum, err := NewRunner(Config{Files: []string{file}, StatePath: filepath.Join(dir, "s.json"), BatchSize: 5}, gw, nil, discardLogger()).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, sum.Inserted)
}

func TestFormatSummary(t *testing.T) {
	text := FormatSummary(Summary{
		DryRun:   true,
		Inserted: 3,
		Files:    []FileSummary{{Path: "/tmp/a/returns.csv", Inserted: 3, Errors: 1}},
	})
	assert.Contains(t, text, "(dry run)")
	assert.Contains(t, text, "returns.csv: 3 new, 0 dup, 0 skipped (1 errors)")
}
