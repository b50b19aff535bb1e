package agents

import (
	"context"
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// ErrInsufficientData is returned when there is nothing to compute on.
var ErrInsufficientData = errors.New("insufficient data")

// ErrEmptyQuery is returned by the retrieval agent when no search phrase is given.
var ErrEmptyQuery = errors.New("empty search query")

// Kind names an agent.
type Kind string

const (
	KindReport    Kind = "report"
	KindForecast  Kind = "forecast"
	KindRetrieval Kind = "retrieval"
)

// Params is the request handed to an agent: the user's words plus what the
// conversation has accumulated so far.
type Params struct {
	Utterance string
	Query     string
	Fields    returns.Fields
}

// Result is an agent answer: a reply text and structured data for API clients.
type Result struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
	Data any    `json:"data,omitempty"`
}

type Agent interface {
	Handle(ctx context.Context, p Params) (Result, error)
}

var lastNDaysRe = regexp.MustCompile(`(?i)\b(?:last|past|previous)\s+(\d{1,3})\s+days?\b`)
var nextNDaysRe = regexp.MustCompile(`(?i)\b(?:next|coming|following)\s+(\d{1,3})\s+days?\b`)

// daysFrom reads "last N days" style overrides from an utterance.
func daysFrom(re *regexp.Regexp, utterance string, fallback int) int {
	m := re.FindStringSubmatch(utterance)
	if m == nil {
		return fallback
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func today(now func() time.Time) time.Time {
	t := now()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
