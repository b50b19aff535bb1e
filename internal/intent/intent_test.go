package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_Table(t *testing.T) {
	c := New()

	tests := []struct {
		name string
		in   Input
		want Intent
		rule string
	}{
		{"return sentence", Input{Utterance: "I want to return an Apple TV bought from Taipei 101 last week."}, Insert, "return-vocabulary"},
		{"refund", Input{Utterance: "Can I get a refund for my kettle?"}, Insert, "return-vocabulary"},
		{"defect only", Input{Utterance: "my blender is broken"}, Insert, "return-vocabulary"},
		{"forecast", Input{Utterance: "Forecast returns for the next 14 days"}, Forecast, "forecast-vocabulary"},
		{"predict", Input{Utterance: "can you predict how many returns we get"}, Forecast, "forecast-vocabulary"},
		{"report", Input{Utterance: "Give me a report on returns"}, Analytics, "analytics-vocabulary"},
		{"how many", Input{Utterance: "How many returns did we have?"}, Analytics, "analytics-vocabulary"},
		{"search", Input{Utterance: "search for broken headphones"}, Retrieval, "retrieval-vocabulary"},
		{"show me", Input{Utterance: "show me returns from IKEA"}, Retrieval, "retrieval-vocabulary"},
		{"find returns", Input{Utterance: "find returns from IKEA"}, Retrieval, "retrieval-vocabulary"},
		{"list returns", Input{Utterance: "list all past returns"}, Retrieval, "retrieval-vocabulary"},
		{"missing receipt", Input{Utterance: "I want to return my kettle but I can't find the receipt"}, Insert, "return-vocabulary"},
		{"return next week", Input{Utterance: "return it next week, it is broken"}, Insert, "return-vocabulary"},
		{"upcoming", Input{Utterance: "my upcoming trip made me return the suitcase"}, Insert, "return-vocabulary"},
		{"find alone", Input{Utterance: "I can't find the receipt"}, None, "fallback"},
		{"greeting", Input{Utterance: "hello"}, None, "fallback"},
		{"empty", Input{}, None, "fallback"},
		{
			"active insert keeps collecting",
			Input{Current: Insert, Utterance: "show me a report"},
			Insert, "insert-active",
		},
		{
			"complete insert re-classifies",
			Input{Current: Insert, Complete: true, Utterance: "show me a report"},
			Analytics, "analytics-vocabulary",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.in)
			assert.Equal(t, tt.want, got.Intent)
			assert.Equal(t, tt.rule, got.Rule)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	c := New()
	in := Input{Current: None, Utterance: "returns report please"}

	first := c.Classify(in)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, c.Classify(in))
	}
}

func TestClassify_CustomRules(t *testing.T) {
	c := New(Rule{Name: "always-forecast", Match: func(Input) bool { return true }, Intent: Forecast})
	assert.Equal(t, Decision{Intent: Forecast, Rule: "always-forecast"}, c.Classify(Input{Utterance: "hi"}))

	empty := &Classifier{}
	assert.Equal(t, None, empty.Classify(Input{Utterance: "hi"}).Intent)
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "broken headphones", Query("search for broken headphones"))
	assert.Equal(t, "ikea", Query("Show me returns from IKEA?"))
	assert.Equal(t, "", Query("find similar"))
	assert.Equal(t, "ikea", Query("find returns from IKEA"))
}
