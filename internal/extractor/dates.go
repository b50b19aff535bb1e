package extractor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

const monthPattern = `(jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)`

var (
	isoDateRe     = regexp.MustCompile(`\b(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})\b`)
	monthDayRe    = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s+(\d{4}))?\b`)
	dayMonthRe    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthPattern + `\.?(?:,?\s+(\d{4}))?\b`)
	relativeDayRe = regexp.MustCompile(`(?i)\b(today|yesterday)\b`)
	daysAgoRe     = regexp.MustCompile(`(?i)\b(\d{1,3}|an?|one|two|three|four|five|six|seven|eight|nine|ten)\s+days?\s+ago\b`)
	vagueDateRe   = regexp.MustCompile(`(?i)\b(last\s+(?:week|weekend|month|year)|(?:a\s+)?(?:few|couple(?:\s+of)?)\s+(?:days|weeks|months)\s+ago|(?:\d+|an?|one|two|three|four|five|six)\s+(?:weeks?|months?|years?)\s+ago|recently|the\s+other\s+day|a\s+while\s+(?:ago|back)|earlier\s+this\s+(?:week|month|year)|this\s+(?:week|month))\b`)

	purchaseCueRe = regexp.MustCompile(`(?i)\b(bought|buy|purchased|purchase|ordered|order|got|paid)\b`)
	returnCueRe   = regexp.MustCompile(`(?i)\b(return|returned|returning|refund|refunded|exchange|exchanged|sent\s+back|send\s+back|sending\s+back|bring\s+back|bringing\s+back|brought\s+back|drop(?:ped|ping)?\s+(?:it\s+)?off)\b`)
)

// dateMention is a date expression found in an utterance.
type dateMention struct {
	start, end int
	raw        string
	value      string // canonical date, empty when vague
}

func (m dateMention) vague() bool { return m.value == "" }

// findDates returns non-overlapping date mentions in order of appearance.
func (e *Extractor) findDates(text string) []dateMention {
	today := e.today()
	var found []dateMention

	add := func(loc []int, value string) {
		found = append(found, dateMention{start: loc[0], end: loc[1], raw: text[loc[0]:loc[1]], value: value})
	}

	for _, m := range isoDateRe.FindAllStringSubmatchIndex(text, -1) {
		y, _ := strconv.Atoi(text[m[2]:m[3]])
		mo, _ := strconv.Atoi(text[m[4]:m[5]])
		d, _ := strconv.Atoi(text[m[6]:m[7]])
		if v, ok := calendarDate(y, mo, d); ok {
			add(m, v)
		}
	}
	for _, m := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		mo := monthNumber(text[m[2]:m[3]])
		d, _ := strconv.Atoi(text[m[4]:m[5]])
		year := -1
		if m[6] >= 0 {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
		}
		if v, ok := resolveYear(today, year, mo, d); ok {
			add(m, v)
		}
	}
	for _, m := range dayMonthRe.FindAllStringSubmatchIndex(text, -1) {
		d, _ := strconv.Atoi(text[m[2]:m[3]])
		mo := monthNumber(text[m[4]:m[5]])
		year := -1
		if m[6] >= 0 {
			year, _ = strconv.Atoi(text[m[6]:m[7]])
		}
		if v, ok := resolveYear(today, year, mo, d); ok {
			add(m, v)
		}
	}
	for _, m := range relativeDayRe.FindAllStringSubmatchIndex(text, -1) {
		day := today
		if strings.EqualFold(text[m[2]:m[3]], "yesterday") {
			day = today.AddDate(0, 0, -1)
		}
		add(m, returns.FormatDate(day))
	}
	for _, m := range daysAgoRe.FindAllStringSubmatchIndex(text, -1) {
		n, ok := parseCount(text[m[2]:m[3]])
		if !ok {
			continue
		}
		add(m, returns.FormatDate(today.AddDate(0, 0, -n)))
	}
	for _, m := range vagueDateRe.FindAllStringIndex(text, -1) {
		add(m, "")
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].start != found[j].start {
			return found[i].start < found[j].start
		}
		return found[i].end-found[i].start > found[j].end-found[j].start
	})

	var out []dateMention
	lastEnd := -1
	for _, m := range found {
		if m.start < lastEnd {
			continue
		}
		out = append(out, m)
		lastEnd = m.end
	}
	return out
}

// attributeDates assigns each mention to the purchase or return date by the
// nearest preceding cue word in the same sentence. Mentions without a cue
// fill the single date still missing, if there is exactly one.
func (e *Extractor) attributeDates(text string, prior returns.Fields, res *Result) {
	mentions := e.findDates(text)
	if len(mentions) == 0 {
		return
	}

	var uncued []dateMention
	for _, m := range mentions {
		field, ok := cueFor(text, m.start)
		if !ok {
			uncued = append(uncued, m)
			continue
		}
		res.set(field, dateCandidate(m))
	}

	for _, m := range uncued {
		var open []returns.Field
		for _, f := range []returns.Field{returns.FieldPurchaseDate, returns.FieldReturnDate} {
			if !prior.Has(f) && !res.has(f) {
				open = append(open, f)
			}
		}
		if len(open) == 1 {
			res.set(open[0], dateCandidate(m))
		}
	}
}

func dateCandidate(m dateMention) Candidate {
	if m.vague() {
		return Candidate{Raw: m.raw, Presence: Ambiguous}
	}
	return Candidate{Value: m.value, Raw: m.raw, Presence: Present}
}

// cueFor looks backwards from pos to the start of the sentence for the
// closest purchase or return cue.
func cueFor(text string, pos int) (returns.Field, bool) {
	start := strings.LastIndexAny(text[:pos], ".!?;\n") + 1
	segment := text[start:pos]

	lastPurchase, lastReturn := -1, -1
	for _, m := range purchaseCueRe.FindAllStringIndex(segment, -1) {
		lastPurchase = m[1]
	}
	for _, m := range returnCueRe.FindAllStringIndex(segment, -1) {
		lastReturn = m[1]
	}

	switch {
	case lastPurchase < 0 && lastReturn < 0:
		return "", false
	case lastPurchase > lastReturn:
		return returns.FieldPurchaseDate, true
	default:
		return returns.FieldReturnDate, true
	}
}

// parseDateAnswer parses an utterance that is nothing but a date expression.
func (e *Extractor) parseDateAnswer(text string) (dateMention, bool) {
	mentions := e.findDates(text)
	if len(mentions) != 1 {
		return dateMention{}, false
	}
	m := mentions[0]
	rest := strings.TrimSpace(text[:m.start] + text[m.end:])
	rest = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(rest), "on"))
	if rest != "" && rest != "it was" && rest != "it's" {
		return dateMention{}, false
	}
	return m, true
}

func (e *Extractor) today() time.Time {
	now := e.now().In(e.loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func calendarDate(y, mo, d int) (string, bool) {
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, time.UTC)
	if t.Day() != d {
		return "", false // e.g. February 30
	}
	return returns.FormatDate(t), true
}

// resolveYear fills a missing year with the most recent year in which the
// date is not in the future.
func resolveYear(today time.Time, year, mo, d int) (string, bool) {
	if year >= 0 {
		return calendarDate(year, mo, d)
	}
	v, ok := calendarDate(today.Year(), mo, d)
	if !ok {
		return "", false
	}
	if t, _ := returns.ParseDate(v); t.After(today) {
		return calendarDate(today.Year()-1, mo, d)
	}
	return v, true
}

func monthNumber(s string) int {
	s = strings.ToLower(s)
	if len(s) > 3 {
		s = s[:3]
	}
	return months[s]
}

func parseCount(s string) (int, bool) {
	s = strings.ToLower(s)
	if n, ok := numberWords[s]; ok {
		return n, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}
