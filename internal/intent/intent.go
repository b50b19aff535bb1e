package intent

import (
	"regexp"
	"strings"
)

// Intent is the branch the coordinator routes a turn to.
type Intent string

const (
	None      Intent = "none"
	Insert    Intent = "insert"
	Analytics Intent = "analytics"
	Forecast  Intent = "forecast"
	Retrieval Intent = "retrieval-query"
)

// Input is everything a rule may look at.
type Input struct {
	Current   Intent // intent active in the conversation, None when idle
	Complete  bool   // whether the accumulated insert fields are complete
	Utterance string
}

// Decision is the classifier output together with the rule that produced it.
type Decision struct {
	Intent Intent `json:"intent"`
	Rule   string `json:"rule"`
}

// Rule is one row of the decision table.
type Rule struct {
	Name   string
	Match  func(Input) bool
	Intent Intent
}

var (
	forecastVocabulary  = vocabulary(`forecast`, `forecasts`, `forecasting`, `predict`, `prediction`, `projection`, `next \d+ days`)
	analyticsVocabulary = vocabulary(`report`, `reports`, `analysis`, `analyse`, `analyze`, `analytics`, `how many`, `trend`, `trends`, `summary`, `summarize`, `statistics`, `stats`, `total loss`, `losses`, `excel`, `breakdown`)
	retrievalVocabulary = vocabulary(`search`, `show me`, `find similar`, `similar`, `any returns`, `past returns`, `previous returns`,
		`(?:find|list|look up|lookup)(?:\s+(?:me|all|the|any|past|previous|recent|similar))*\s+(?:returns?|records?)`)
	returnVocabulary    = vocabulary(`return`, `returning`, `refund`, `send back`, `sending back`, `send it back`, `exchange`, `broken`, `defective`, `faulty`, `damaged`, `not working`, `doesn't work`, `stopped working`)
)

// DefaultRules is the fixed classification table. Order matters: the first
// matching rule wins.
var DefaultRules = []Rule{
	{
		Name:   "insert-active",
		Match:  func(in Input) bool { return in.Current == Insert && !in.Complete },
		Intent: Insert,
	},
	{Name: "forecast-vocabulary", Match: utteranceMatches(forecastVocabulary), Intent: Forecast},
	{Name: "analytics-vocabulary", Match: utteranceMatches(analyticsVocabulary), Intent: Analytics},
	{Name: "retrieval-vocabulary", Match: utteranceMatches(retrievalVocabulary), Intent: Retrieval},
	{Name: "return-vocabulary", Match: utteranceMatches(returnVocabulary), Intent: Insert},
	{Name: "fallback", Match: func(Input) bool { return true }, Intent: None},
}

// Classifier evaluates a rule table.
type Classifier struct {
	rules []Rule
}

// New returns a classifier over rules, or DefaultRules when none are given.
func New(rules ...Rule) *Classifier {
	if len(rules) == 0 {
		rules = DefaultRules
	}
	return &Classifier{rules: rules}
}

// Classify returns the intent of the first matching rule. It is a pure
// function of its input.
func (c *Classifier) Classify(in Input) Decision {
	for _, r := range c.rules {
		if r.Match(in) {
			return Decision{Intent: r.Intent, Rule: r.Name}
		}
	}
	return Decision{Intent: None, Rule: "no-match"}
}

// Query strips the retrieval vocabulary from an utterance and returns the
// remaining search phrase.
func Query(utterance string) string {
	q := retrievalVocabulary.ReplaceAllString(strings.ToLower(utterance), " ")
	q = fillerWords.ReplaceAllString(q, " ")
	q = strings.Trim(q, " .,;:!?")
	return strings.Join(strings.Fields(q), " ")
}

var fillerWords = regexp.MustCompile(`(?i)\b(?:please|can|could|you|me|for|from|at|in|the|a|an|any|about|of|with|returns?|records?|i|want|to|like|would)\b|[?.!,]`)

func vocabulary(words ...string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(words, "|") + `)\b`)
}

func utteranceMatches(re *regexp.Regexp) func(Input) bool {
	return func(in Input) bool { return re.MatchString(in.Utterance) }
}
