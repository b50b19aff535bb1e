package extractor

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

const numberPattern = `(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`

var (
	productReturnRe = regexp.MustCompile(`(?i)\breturn(?:ing)?\s+(?:my|an|a|the|this|these|those|some|our|his|her)\s+(.+?)(?:\s+(?:that|which|i|we|bought|purchased|ordered|got|from|at|because|since|as|for|on|last|yesterday|today|and|but|it|due)\b|[.,;!?]|$)`)
	productIsRe     = regexp.MustCompile(`(?i)\b(?:product|item)\s+(?:is|was|name\s+is)\s+(.+?)(?:[.,;!?]|$)`)
	productPrefixRe = regexp.MustCompile(`(?i)^\s*(?:(?:an?|the|my)\s+)?([^,.;!?]+?)\s+(?:from|at)\b`)

	storeFromRe = regexp.MustCompile(`(?i)\b(?:from|at)\s+(?:the\s+)?(.+?)(?:\s+(?:on|last|this|yesterday|today|for|because|since|and|but|it|which|that|in|when|with|about|around|\d+\s+days?)\b|[.,;!?]|$)`)
	storeIsRe   = regexp.MustCompile(`(?i)\b(?:store|shop|retailer)\s+(?:is|was)\s+(.+?)(?:[.,;!?]|$)`)

	reasonClauseRe = regexp.MustCompile(`(?i)\b(?:because|since|due\s+to|reason\s+is|reason\s+was|reason:)\s+(?:it\s+(?:is|was|'s)\s+|of\s+)?(.+?)(?:[.;!?]|$)`)

	amountCurrencyRe = regexp.MustCompile(`(?i)(?:^|[^\w.,])` + numberPattern + `\s*(nt\s+dollars?|us\s+dollars?|dollars?|bucks|euros?|yen|rupees|[a-z]{3})\b`)
	currencyAmountRe = regexp.MustCompile(`(?i)(NT\$|US\$|HK\$|S\$|A\$|C\$|€|£|₩|₹|\$|¥|\b[a-z]{3})\s?` + numberPattern)
	priceCueRe       = regexp.MustCompile(`(?i)\b(?:cost|costs|costed|paid|pay|priced\s+at|price\s+(?:is|was)|price|for)\s+(?:me\s+)?(?:about\s+|around\s+)?` + numberPattern + `(?:\s+([a-z]+))?`)
	bareAmountRe     = regexp.MustCompile(`^` + numberPattern + `$`)

	attributeRe = regexp.MustCompile(`(?i)\b(category|city|country)\s+(?:is|was)\s+(.+?)(?:[.,;!?]|$)`)
)

// productBlockers mark a prefix as a sentence rather than a product name.
var productBlockers = map[string]bool{
	"i": true, "we": true, "you": true, "want": true, "return": true, "returned": true,
	"returning": true, "bought": true, "purchased": true, "got": true, "paid": true,
	"cost": true, "is": true, "was": true, "it": true, "please": true, "refund": true,
}

func (e *Extractor) extractProduct(text string, res *Result) {
	for _, re := range []*regexp.Regexp{productReturnRe, productIsRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if v := cleanName(m[1]); v != "" && !pronouns[strings.ToLower(firstWord(v))] {
			res.set(returns.FieldProduct, Candidate{Value: v, Raw: m[1], Presence: Present})
			return
		}
	}
}

// extractProductPrefix handles answers like "Apple TV from Taipei 101".
func (e *Extractor) extractProductPrefix(text string, prior returns.Fields, res *Result) {
	if prior.Has(returns.FieldProduct) || res.has(returns.FieldProduct) {
		return
	}
	m := productPrefixRe.FindStringSubmatch(text)
	if m == nil {
		return
	}
	words := strings.Fields(m[1])
	if len(words) == 0 || len(words) > 5 {
		return
	}
	for _, w := range words {
		if productBlockers[strings.ToLower(w)] || pronouns[strings.ToLower(w)] {
			return
		}
	}
	if v := cleanName(m[1]); v != "" {
		res.set(returns.FieldProduct, Candidate{Value: v, Raw: m[1], Presence: Present})
	}
}

func (e *Extractor) extractStore(text string, res *Result) {
	for _, m := range storeFromRe.FindAllStringSubmatchIndex(text, -1) {
		raw := text[m[2]:m[3]]
		if priceCueBefore(text[:m[0]]) {
			continue
		}
		v := cleanName(raw)
		if v == "" || pronouns[strings.ToLower(firstWord(v))] || e.looksLikeDateOrAmount(v) {
			continue
		}
		res.set(returns.FieldStore, Candidate{Value: v, Raw: raw, Presence: Present})
		return
	}
	if m := storeIsRe.FindStringSubmatch(text); m != nil {
		if v := cleanName(m[1]); v != "" {
			res.set(returns.FieldStore, Candidate{Value: v, Raw: m[1], Presence: Present})
		}
	}
}

func (e *Extractor) extractReason(text string, res *Result) {
	lower := strings.ToLower(text)
	for _, phrase := range reasonPhrases {
		if idx := indexWord(lower, phrase); idx >= 0 {
			res.set(returns.FieldReason, Candidate{Value: phrase, Raw: text[idx : idx+len(phrase)], Presence: Present})
			return
		}
	}
	if m := reasonClauseRe.FindStringSubmatch(text); m != nil {
		if v := strings.TrimSpace(strings.TrimRight(m[1], " ,")); v != "" {
			res.set(returns.FieldReason, Candidate{Value: v, Raw: m[1], Presence: Present})
		}
	}
}

func (e *Extractor) extractPrice(text string, res *Result) {
	for _, m := range amountCurrencyRe.FindAllStringSubmatch(text, -1) {
		code, ok := resolveCurrency(m[2])
		if !ok {
			continue
		}
		if setPrice(res, m[1]) {
			setCurrency(res, code, m[2])
			return
		}
	}
	for _, m := range currencyAmountRe.FindAllStringSubmatch(text, -1) {
		code, ok := resolveCurrency(m[1])
		if !ok {
			continue
		}
		if setPrice(res, m[2]) {
			setCurrency(res, code, m[1])
			return
		}
	}
	for _, m := range priceCueRe.FindAllStringSubmatch(text, -1) {
		if isTimeUnit(m[2]) {
			continue
		}
		if setPrice(res, m[1]) {
			return
		}
	}
}

func (e *Extractor) extractAttributes(text string, res *Result) {
	for _, m := range attributeRe.FindAllStringSubmatch(text, -1) {
		if v := cleanName(m[2]); v != "" {
			res.set(returns.Field(strings.ToLower(m[1])), Candidate{Value: v, Raw: m[2], Presence: Present})
		}
	}
}

func setPrice(res *Result, raw string) bool {
	a, err := returns.ParseAmount(raw)
	if err != nil || a <= 0 {
		return false
	}
	res.set(returns.FieldPrice, Candidate{Value: a.String(), Raw: raw, Presence: Present})
	return true
}

func setCurrency(res *Result, code, raw string) {
	if code == "" {
		res.set(returns.FieldCurrency, Candidate{Raw: raw, Presence: Ambiguous})
		return
	}
	res.set(returns.FieldCurrency, Candidate{Value: code, Raw: raw, Presence: Present})
}

func (e *Extractor) looksLikeDateOrAmount(v string) bool {
	if bareAmountRe.MatchString(strings.TrimSpace(v)) {
		return true
	}
	for _, m := range e.findDates(v) {
		if m.start == 0 {
			return true
		}
	}
	return amountCurrencyRe.MatchString(v) && unicode.IsDigit(rune(v[0]))
}

// priceCueBefore reports whether the text ends with a word that makes a
// following "at" part of a price ("priced at 30").
func priceCueBefore(prefix string) bool {
	fields := strings.Fields(strings.ToLower(prefix))
	if len(fields) == 0 {
		return false
	}
	switch fields[len(fields)-1] {
	case "priced", "price", "cost", "costs", "sold", "selling", "paid":
		return true
	}
	return false
}

func isTimeUnit(word string) bool {
	word = strings.ToLower(word)
	for _, u := range timeUnits {
		if word == u {
			return true
		}
	}
	return false
}

// cleanName trims whitespace, surrounding quotes and trailing punctuation.
func cleanName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'“”‘’`)
	s = strings.TrimRight(s, " .,;:!?")
	return strings.Join(strings.Fields(s), " ")
}

func firstWord(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// indexWord finds phrase in s on word boundaries.
func indexWord(s, phrase string) int {
	from := 0
	for {
		i := strings.Index(s[from:], phrase)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(phrase)
		before := i == 0 || !isWordByte(s[i-1])
		after := end == len(s) || !isWordByte(s[end])
		if before && after {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}
