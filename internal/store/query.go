package store

import (
	"strings"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// Window selects returns by return date, both ends inclusive. Product, when
// set, keeps only products containing it (case-insensitive).
type Window struct {
	From    time.Time
	To      time.Time
	Product string
}

// Summary aggregates the returns of a window.
type Summary struct {
	Count int                       `json:"count"`
	Loss  map[string]returns.Amount `json:"loss"` // by currency
}

// DailyCount is the number of returns with a given return date.
type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// likePattern wraps a search term for ILIKE, escaping its wildcards.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(term) + "%"
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
