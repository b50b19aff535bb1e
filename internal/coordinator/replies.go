package coordinator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/MikeSquared-Agency/clerk/internal/extractor"
	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

const clarificationText = "I can record a product return, report on returns, forecast return volume or search past returns. What would you like to do?"

// followUpText asks for exactly the missing fields, prefixed by any
// validation problems and notes about vague answers.
func followUpText(problems, notes []string, missing []returns.Field) string {
	ask := fmt.Sprintf("Please tell me the %s.", returns.JoinLabels(missing))
	return joinSentences(append(problems, notes...), ask)
}

// vagueNotes explains which missing fields were mentioned too vaguely.
func vagueNotes(res extractor.Result, missing []returns.Field) []string {
	want := make(map[returns.Field]bool, len(missing))
	for _, f := range missing {
		want[f] = true
	}

	var notes []string
	for _, f := range res.Ambiguous() {
		if !want[f] {
			continue
		}
		c := res.Fields[f]
		switch f {
		case returns.FieldCurrency:
			notes = append(notes, fmt.Sprintf("%q could be several currencies.", c.Raw))
		case returns.FieldPurchaseDate, returns.FieldReturnDate:
			notes = append(notes, fmt.Sprintf("%q is too vague for the %s; I need an exact date.", c.Raw, f.Label()))
		default:
			notes = append(notes, fmt.Sprintf("I couldn't tell the %s from %q.", f.Label(), c.Raw))
		}
	}
	return notes
}

func confirmationText(f returns.Fields) string {
	return fmt.Sprintf("Please confirm this return: %s from %s, bought %s, returned %s, %s %s, reason: %s. Reply yes to save it or no to discard it.",
		f[returns.FieldProduct], f[returns.FieldStore],
		f[returns.FieldPurchaseDate], f[returns.FieldReturnDate],
		f[returns.FieldPrice], f[returns.FieldCurrency],
		f[returns.FieldReason])
}

func joinSentences(lead []string, last string) string {
	if len(lead) == 0 {
		return last
	}
	return strings.Join(append(lead, last), " ")
}

// sentence capitalizes s and ends it with a period.
func sentence(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	s = string(r)
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}
