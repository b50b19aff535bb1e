package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

const (
	retrievalTopK       = 3
	retrievalCandidates = 50
)

type Searcher interface {
	Search(ctx context.Context, terms []string, limit int) ([]returns.Record, error)
}

// Retrieval finds past returns resembling a search phrase. Candidates are
// ranked by how many query terms they contain, then by recency.
type Retrieval struct {
	source Searcher
}

func NewRetrieval(source Searcher) *Retrieval {
	return &Retrieval{source: source}
}

func (r *Retrieval) Handle(ctx context.Context, p Params) (Result, error) {
	query := strings.TrimSpace(p.Query)
	if query == "" {
		query = strings.TrimSpace(p.Utterance)
	}
	terms := searchTerms(query)
	if len(terms) == 0 {
		return Result{}, ErrEmptyQuery
	}

	candidates, err := r.source.Search(ctx, terms, retrievalCandidates)
	if err != nil {
		return Result{}, fmt.Errorf("search returns: %w", err)
	}

	type scored struct {
		rec   returns.Record
		score int
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		haystack := strings.ToLower(c.Product + " " + c.Store + " " + c.Reason)
		n := 0
		for _, t := range terms {
			if strings.Contains(haystack, t) {
				n++
			}
		}
		ranked[i] = scored{rec: c, score: n}
	}
	// candidates arrive most recent first; a stable sort keeps that order on ties
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	var hits []returns.Record
	for i := 0; i < len(ranked) && i < retrievalTopK; i++ {
		hits = append(hits, ranked[i].rec)
	}

	if len(hits) == 0 {
		return Result{Kind: KindRetrieval, Text: fmt.Sprintf("No returns matched %q.", query), Data: []returns.Record{}}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d matching returns for %q:", len(hits), query)
	for i, h := range hits {
		fmt.Fprintf(&b, "\n%d. %s from %s, returned %s, %s %s: %s",
			i+1, h.Product, h.Store, returns.FormatDate(h.ReturnDate), h.Price, h.Currency, h.Reason)
	}
	return Result{Kind: KindRetrieval, Text: b.String(), Data: hits}, nil
}

var searchStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "from": true, "that": true,
	"returns": true, "return": true, "returned": true, "about": true, "any": true,
}

func searchTerms(query string) []string {
	var terms []string
	seen := map[string]bool{}
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, `.,;:!?"'()`)
		if len(w) < 2 || searchStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		terms = append(terms, w)
	}
	return terms
}
