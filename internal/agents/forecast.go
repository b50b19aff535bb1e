package agents

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

const (
	DefaultHorizonDays = 14
	movingAverageDays  = 7
	forecastLookback   = 90
	maxHorizonDays     = 365
)

type DailySource interface {
	DailyCounts(ctx context.Context, from, to time.Time) ([]store.DailyCount, error)
}

// ForecastPoint is one predicted day.
type ForecastPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

// ForecastData is the structured part of a forecast answer.
type ForecastData struct {
	HorizonDays int             `json:"horizon_days"`
	Model       string          `json:"model"`
	MAE         float64         `json:"mae"`
	Points      []ForecastPoint `json:"points"`
}

// Forecast predicts daily return volume with a moving average over the most
// recent days and reports the mean absolute error of that average over the
// same days.
type Forecast struct {
	source DailySource
	now    func() time.Time
}

func NewForecast(source DailySource, now func() time.Time) *Forecast {
	return &Forecast{source: source, now: now}
}

func (f *Forecast) Handle(ctx context.Context, p Params) (Result, error) {
	horizon := daysFrom(nextNDaysRe, p.Utterance, DefaultHorizonDays)
	if horizon > maxHorizonDays {
		horizon = maxHorizonDays
	}

	end := today(f.now)
	counts, err := f.source.DailyCounts(ctx, end.AddDate(0, 0, -(forecastLookback-1)), end)
	if err != nil {
		return Result{}, fmt.Errorf("load daily counts: %w", err)
	}
	series := fillSeries(counts, end)
	if len(series) == 0 {
		return Result{}, ErrInsufficientData
	}

	window := movingAverageDays
	if len(series) < window {
		window = len(series)
	}
	recent := series[len(series)-window:]

	var sum float64
	for _, v := range recent {
		sum += v
	}
	avg := sum / float64(window)

	var absErr float64
	for _, v := range recent {
		absErr += math.Abs(v - avg)
	}

	data := ForecastData{
		HorizonDays: horizon,
		Model:       fmt.Sprintf("%d-day moving average", window),
		MAE:         round2(absErr / float64(window)),
	}
	for i := 1; i <= horizon; i++ {
		data.Points = append(data.Points, ForecastPoint{
			Date:  returns.FormatDate(end.AddDate(0, 0, i)),
			Value: round2(avg),
		})
	}

	text := fmt.Sprintf("Forecast for the next %d days: about %.2f returns per day (%s, MAE %.2f).",
		horizon, round2(avg), data.Model, data.MAE)
	return Result{Kind: KindForecast, Text: text, Data: data}, nil
}

// fillSeries turns sparse daily counts into a dense series running from the
// first day with returns through end, with zeros for quiet days.
func fillSeries(counts []store.DailyCount, end time.Time) []float64 {
	if len(counts) == 0 {
		return nil
	}
	byDay := make(map[time.Time]int, len(counts))
	first := counts[0].Day
	for _, c := range counts {
		byDay[c.Day] = c.Count
		if c.Day.Before(first) {
			first = c.Day
		}
	}

	var series []float64
	for d := first; !d.After(end); d = d.AddDate(0, 0, 1) {
		series = append(series, float64(byDay[d]))
	}
	return series
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
