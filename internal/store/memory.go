package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// Memory is an in-process store with the same insert-or-reject contract as
// the Postgres store. All state is guarded by one mutex.
type Memory struct {
	now func() time.Time

	mu      sync.Mutex
	byKey   map[string]returns.Record
	records []returns.Record
	seq     int64
	last    time.Time
}

func NewMemory() *Memory {
	return &Memory{now: time.Now, byKey: make(map[string]returns.Record)}
}

func (m *Memory) InsertIfAbsent(_ context.Context, r returns.Record) (returns.Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.byKey[r.DedupKey]; ok {
		return existing, false, nil
	}

	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	m.seq++
	r.Seq = m.seq

	// creation timestamps are strictly increasing
	now := m.now()
	if !now.After(m.last) {
		now = m.last.Add(time.Nanosecond)
	}
	m.last = now
	r.CreatedAt = now

	m.byKey[r.DedupKey] = r
	m.records = append(m.records, r)
	return r, true, nil
}

func (m *Memory) Get(_ context.Context, dedupKey string) (returns.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.byKey[dedupKey]
	if !ok {
		return returns.Record{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records), nil
}

func (m *Memory) Aggregate(_ context.Context, w Window) (Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to := dayOf(w.From), dayOf(w.To)
	product := strings.ToLower(w.Product)
	sum := Summary{Loss: make(map[string]returns.Amount)}
	for _, r := range m.records {
		if !inRange(r.ReturnDate, from, to) {
			continue
		}
		if product != "" && !strings.Contains(strings.ToLower(r.Product), product) {
			continue
		}
		sum.Count++
		sum.Loss[r.Currency] += r.Price
	}
	return sum, nil
}

func (m *Memory) DailyCounts(_ context.Context, from, to time.Time) ([]DailyCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	from, to = dayOf(from), dayOf(to)
	counts := make(map[time.Time]int)
	for _, r := range m.records {
		if d := dayOf(r.ReturnDate); inRange(d, from, to) {
			counts[d]++
		}
	}

	out := make([]DailyCount, 0, len(counts))
	for d, n := range counts {
		out = append(out, DailyCount{Day: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out, nil
}

func (m *Memory) Search(_ context.Context, terms []string, limit int) ([]returns.Record, error) {
	if len(terms) == 0 {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []returns.Record
	for i := len(m.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		r := m.records[i]
		haystack := strings.ToLower(r.Product + "\n" + r.Store + "\n" + r.Reason)
		for _, t := range terms {
			if strings.Contains(haystack, strings.ToLower(t)) {
				out = append(out, r)
				break
			}
		}
	}
	return out, nil
}

func inRange(d, from, to time.Time) bool {
	d = dayOf(d)
	return !d.Before(from) && !d.After(to)
}
