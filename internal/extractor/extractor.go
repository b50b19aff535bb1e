package extractor

import (
	"strings"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// maxFreeTextWords bounds a short answer taken verbatim as a product,
// store or reason.
const maxFreeTextWords = 8

// Extractor turns one utterance into candidate return fields. It holds no
// per-conversation state and is safe for concurrent use.
type Extractor struct {
	now func() time.Time
	loc *time.Location
}

type Option func(*Extractor)

// WithClock sets the clock used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

// WithLocation sets the time zone in which "today" is evaluated.
func WithLocation(loc *time.Location) Option {
	return func(e *Extractor) {
		if loc != nil {
			e.loc = loc
		}
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{now: time.Now, loc: time.UTC}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract finds the fields mentioned in utterance. prior is the field set
// accumulated so far; it decides where uncued dates and short answers go.
// Extract never fails: unrecognized text yields an empty result.
func (e *Extractor) Extract(utterance string, prior returns.Fields) Result {
	text := normalize(utterance)
	var res Result
	if text == "" {
		return res
	}

	e.extractProduct(text, &res)
	e.extractStore(text, &res)
	e.extractReason(text, &res)
	e.extractPrice(text, &res)
	e.attributeDates(text, prior, &res)
	e.extractAttributes(text, &res)
	e.extractProductPrefix(text, prior, &res)

	if res.Empty() {
		e.shortAnswer(text, prior, &res)
	}
	return res
}

// shortAnswer interprets a terse reply to a follow-up question ("Best Buy",
// "2024-05-01", "USD") as the value of one of the missing fields.
func (e *Extractor) shortAnswer(text string, prior returns.Fields, res *Result) {
	missing := map[returns.Field]bool{}
	for _, f := range prior.Missing() {
		missing[f] = true
	}
	if len(missing) == 0 {
		return
	}

	if m, ok := e.parseDateAnswer(text); ok {
		var open []returns.Field
		for _, f := range []returns.Field{returns.FieldPurchaseDate, returns.FieldReturnDate} {
			if missing[f] {
				open = append(open, f)
			}
		}
		if len(open) == 1 {
			res.set(open[0], dateCandidate(m))
		}
		return
	}

	bare := strings.TrimRight(text, ".!")
	if missing[returns.FieldPrice] && bareAmountRe.MatchString(bare) {
		setPrice(res, bare)
		return
	}
	if missing[returns.FieldCurrency] {
		if code, ok := resolveCurrency(bare); ok {
			setCurrency(res, code, bare)
			return
		}
	}

	var textFields []returns.Field
	for _, f := range []returns.Field{returns.FieldProduct, returns.FieldStore, returns.FieldReason} {
		if missing[f] {
			textFields = append(textFields, f)
		}
	}
	if len(textFields) != 1 {
		return
	}
	v := cleanName(text)
	if v == "" || len(strings.Fields(v)) > maxFreeTextWords || bareAmountRe.MatchString(v) {
		return
	}
	if textFields[0] != returns.FieldReason && pronouns[strings.ToLower(v)] {
		return
	}
	res.set(textFields[0], Candidate{Value: v, Raw: text, Presence: Present})
}

func normalize(s string) string {
	s = strings.NewReplacer("’", "'", "‘", "'", "“", `"`, "”", `"`).Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
