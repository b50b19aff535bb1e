package agents

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
	"github.com/MikeSquared-Agency/clerk/internal/store"
)

func fixedNow() time.Time {
	return time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC)
}

func day(m time.Month, d int) time.Time {
	return time.Date(2025, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, recs ...returns.Record) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	for i, r := range recs {
		if r.DedupKey == "" {
			r.DedupKey = fmt.Sprintf("key-%d", i)
		}
		_, _, err := m.InsertIfAbsent(context.Background(), r)
		require.NoError(t, err)
	}
	return m
}

func ret(product, reason string, returned time.Time, price string, currency string) returns.Record {
	return returns.Record{
		Product:      product,
		Store:        "Taipei 101",
		PurchaseDate: returned.AddDate(0, 0, -10),
		ReturnDate:   returned,
		Price:        returns.MustParseAmount(price),
		Currency:     currency,
		Reason:       reason,
	}
}

func TestReport_DefaultWindowAndTrend(t *testing.T) {
	src := seed(t,
		ret("Apple TV", "not working", day(6, 10), "3300", "NTD"),
		ret("Kettle", "leaking", day(6, 12), "20", "EUR"),
		ret("Apple TV", "not working", day(5, 25), "3300", "NTD"),
		ret("Old thing", "broken", day(4, 1), "5", "USD"),
	)
	agent := NewReport(src, fixedNow)

	res, err := agent.Handle(context.Background(), Params{Utterance: "give me a report"})
	require.NoError(t, err)
	assert.Equal(t, KindReport, res.Kind)

	data, ok := res.Data.(ReportData)
	require.True(t, ok)
	assert.Equal(t, "2025-06-02", data.From)
	assert.Equal(t, "2025-06-15", data.To)
	assert.Equal(t, 2, data.Current.Count)
	assert.Equal(t, 1, data.Previous.Count)
	assert.Equal(t, TrendIncreasing, data.Trend)
	assert.Equal(t, returns.MustParseAmount("3300"), data.Current.Loss["NTD"])
	assert.Contains(t, res.Text, "Returns: 2")
	assert.Contains(t, res.Text, "Loss: 20.00 EUR, 3300.00 NTD")
	assert.Contains(t, data.Insight, "increasing")
}

func TestReport_ProductFilterAndOverride(t *testing.T) {
	src := seed(t,
		ret("Apple TV", "not working", day(6, 14), "3300", "NTD"),
		ret("Apple Watch", "cracked", day(6, 3), "12000", "NTD"),
		ret("Kettle", "leaking", day(6, 14), "20", "EUR"),
	)
	agent := NewReport(src, fixedNow)

	res, err := agent.Handle(context.Background(), Params{
		Utterance: "report for the last 7 days",
		Fields:    returns.Fields{returns.FieldProduct: "apple"},
	})
	require.NoError(t, err)

	data := res.Data.(ReportData)
	assert.Equal(t, "2025-06-09", data.From)
	assert.Equal(t, "apple", data.Product)
	assert.Equal(t, 1, data.Current.Count)
	assert.Equal(t, 1, data.Previous.Count)
	assert.Equal(t, TrendFlat, data.Trend)
	assert.Contains(t, data.Insight, `for "apple"`)
}

func TestReport_NoData(t *testing.T) {
	res, err := NewReport(store.NewMemory(), fixedNow).Handle(context.Background(), Params{})
	require.NoError(t, err)
	data := res.Data.(ReportData)
	assert.Zero(t, data.Current.Count)
	assert.Equal(t, TrendFlat, data.Trend)
	assert.Contains(t, res.Text, "Loss: 0.00")
}

func TestForecast_MovingAverage(t *testing.T) {
	var recs []returns.Record
	for i, d := range []time.Time{day(6, 13), day(6, 13), day(6, 14), day(6, 15), day(6, 15), day(6, 15), day(6, 15)} {
		recs = append(recs, ret(fmt.Sprintf("item %d", i), "broken", d, "10", "USD"))
	}
	agent := NewForecast(seed(t, recs...), fixedNow)

	res, err := agent.Handle(context.Background(), Params{Utterance: "forecast the next 5 days"})
	require.NoError(t, err)

	data := res.Data.(ForecastData)
	assert.Equal(t, 5, data.HorizonDays)
	assert.Equal(t, "3-day moving average", data.Model)
	assert.InDelta(t, 1.11, data.MAE, 0.001)
	require.Len(t, data.Points, 5)
	assert.Equal(t, "2025-06-16", data.Points[0].Date)
	assert.Equal(t, "2025-06-20", data.Points[4].Date)
	assert.InDelta(t, 2.33, data.Points[0].Value, 0.001)
	assert.Contains(t, res.Text, "next 5 days")
}

func TestForecast_DefaultHorizonAndQuietDays(t *testing.T) {
	// One return ten days ago: the series is zero-filled up to today.
	agent := NewForecast(seed(t, ret("Kettle", "leaking", day(6, 5), "20", "EUR")), fixedNow)

	res, err := agent.Handle(context.Background(), Params{Utterance: "predict returns"})
	require.NoError(t, err)

	data := res.Data.(ForecastData)
	assert.Equal(t, DefaultHorizonDays, data.HorizonDays)
	assert.Equal(t, "7-day moving average", data.Model)
	assert.Zero(t, data.Points[0].Value)
}

func TestForecast_InsufficientData(t *testing.T) {
	_, err := NewForecast(store.NewMemory(), fixedNow).Handle(context.Background(), Params{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestRetrieval_RanksByTermsThenRecency(t *testing.T) {
	src := seed(t,
		ret("Sony headphones", "broken", day(6, 1), "100", "USD"),
		ret("Kettle", "leaking", day(6, 2), "20", "EUR"),
		ret("Bose headphones", "not working", day(6, 3), "200", "USD"),
		ret("Beats headphones", "broken", day(6, 4), "150", "USD"),
	)
	agent := NewRetrieval(src)

	res, err := agent.Handle(context.Background(), Params{Query: "broken headphones"})
	require.NoError(t, err)

	hits := res.Data.([]returns.Record)
	require.Len(t, hits, 3)
	assert.Equal(t, "Beats headphones", hits[0].Product)
	assert.Equal(t, "Sony headphones", hits[1].Product)
	assert.Equal(t, "Bose headphones", hits[2].Product)
	assert.Contains(t, res.Text, "1. Beats headphones from Taipei 101")
}

func TestRetrieval_NoMatchesAndEmptyQuery(t *testing.T) {
	agent := NewRetrieval(seed(t, ret("Kettle", "leaking", day(6, 2), "20", "EUR")))

	res, err := agent.Handle(context.Background(), Params{Query: "drone"})
	require.NoError(t, err)
	assert.Equal(t, `No returns matched "drone".`, res.Text)

	_, err = agent.Handle(context.Background(), Params{Query: "  the  "})
	assert.ErrorIs(t, err, ErrEmptyQuery)
}
