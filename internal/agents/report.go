package agents

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

// DefaultReportDays is the report window when the user names none.
const DefaultReportDays = 14

// Trend compares a window with the one before it.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendFlat       Trend = "flat"
)

type Aggregator interface {
	Aggregate(ctx context.Context, w store.Window) (store.Summary, error)
}

// ReportData is the structured part of a report answer.
type ReportData struct {
	From     string        `json:"from"`
	To       string        `json:"to"`
	Product  string        `json:"product,omitempty"`
	Current  store.Summary `json:"current"`
	Previous store.Summary `json:"previous"`
	Trend    Trend         `json:"trend"`
	Insight  string        `json:"insight"`
}

// Report summarizes returns over a recent window and compares it with the
// preceding window of the same length.
type Report struct {
	source Aggregator
	now    func() time.Time
}

func NewReport(source Aggregator, now func() time.Time) *Report {
	return &Report{source: source, now: now}
}

var lastWeekRe = regexp.MustCompile(`(?i)\b(?:last|past)\s+week\b`)
var lastMonthRe = regexp.MustCompile(`(?i)\b(?:last|past)\s+month\b`)

func (r *Report) Handle(ctx context.Context, p Params) (Result, error) {
	days := DefaultReportDays
	switch {
	case lastWeekRe.MatchString(p.Utterance):
		days = 7
	case lastMonthRe.MatchString(p.Utterance):
		days = 30
	}
	days = daysFrom(lastNDaysRe, p.Utterance, days)

	end := today(r.now)
	start := end.AddDate(0, 0, -(days - 1))
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(days - 1))
	product := strings.TrimSpace(p.Fields[returns.FieldProduct])

	cur, err := r.source.Aggregate(ctx, store.Window{From: start, To: end, Product: product})
	if err != nil {
		return Result{}, fmt.Errorf("aggregate current window: %w", err)
	}
	prev, err := r.source.Aggregate(ctx, store.Window{From: prevStart, To: prevEnd, Product: product})
	if err != nil {
		return Result{}, fmt.Errorf("aggregate previous window: %w", err)
	}

	data := ReportData{
		From:     returns.FormatDate(start),
		To:       returns.FormatDate(end),
		Product:  product,
		Current:  cur,
		Previous: prev,
		Trend:    trendOf(cur.Count, prev.Count),
	}
	data.Insight = insight(data)

	text := fmt.Sprintf("Returns: %d\nLoss: %s\nTrend: %s\n%s",
		cur.Count, formatLoss(cur.Loss), data.Trend, data.Insight)
	return Result{Kind: KindReport, Text: text, Data: data}, nil
}

func trendOf(current, previous int) Trend {
	switch {
	case current > previous:
		return TrendIncreasing
	case current < previous:
		return TrendDecreasing
	default:
		return TrendFlat
	}
}

func insight(d ReportData) string {
	scope := ""
	if d.Product != "" {
		scope = fmt.Sprintf("for %q ", d.Product)
	}
	period := d.From + " to " + d.To
	counts := fmt.Sprintf("(%d vs %d in the previous period)", d.Current.Count, d.Previous.Count)
	loss := fmt.Sprintf("Estimated loss is %s vs %s previously.", formatLoss(d.Current.Loss), formatLoss(d.Previous.Loss))

	switch d.Trend {
	case TrendIncreasing:
		return fmt.Sprintf("Returns %sare increasing in %s %s. %s Check store handling and product batch quality.", scope, period, counts, loss)
	case TrendDecreasing:
		return fmt.Sprintf("Returns %sare decreasing in %s %s. %s Recent mitigations may be working.", scope, period, counts, loss)
	default:
		return fmt.Sprintf("Returns %sare stable in %s %s. %s", scope, period, counts, loss)
	}
}

// formatLoss renders per-currency totals in code order, e.g. "20.00 EUR, 3300.00 NTD".
func formatLoss(loss map[string]returns.Amount) string {
	if len(loss) == 0 {
		return "0.00"
	}
	codes := make([]string, 0, len(loss))
	for c := range loss {
		codes = append(codes, c)
	}
	sort.Strings(codes)

	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = loss[c].String() + " " + c
	}
	return strings.Join(parts, ", ")
}
