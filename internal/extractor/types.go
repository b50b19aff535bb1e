package extractor

import (
	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// Presence tells whether a field was found with a usable value.
type Presence int

const (
	// Present means Value holds a canonical field value.
	Present Presence = iota + 1
	// Ambiguous means the field was mentioned but could not be pinned down
	// (e.g. "last week" for a date). The field still counts as missing.
	Ambiguous
)

func (p Presence) String() string {
	switch p {
	case Present:
		return "present"
	case Ambiguous:
		return "ambiguous"
	default:
		return "absent"
	}
}

func (p Presence) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Candidate is one extracted field.
type Candidate struct {
	Value    string   `json:"value,omitempty"`
	Raw      string   `json:"raw"`
	Presence Presence `json:"presence"`
}

// Result holds the candidates found in one utterance. Fields absent from the
// utterance are absent from the map.
type Result struct {
	Fields map[returns.Field]Candidate `json:"fields"`
}

// Present returns the usable values as a field set.
func (r Result) Present() returns.Fields {
	out := make(returns.Fields)
	for f, c := range r.Fields {
		if c.Presence == Present {
			out[f] = c.Value
		}
	}
	return out
}

// Ambiguous returns the fields that were mentioned but unusable, in
// returns.RequiredFields order.
func (r Result) Ambiguous() []returns.Field {
	var out []returns.Field
	for _, f := range returns.RequiredFields {
		if c, ok := r.Fields[f]; ok && c.Presence == Ambiguous {
			out = append(out, f)
		}
	}
	return out
}

// Empty reports whether nothing at all was recognized.
func (r Result) Empty() bool {
	return len(r.Fields) == 0
}

func (r *Result) set(f returns.Field, c Candidate) {
	if r.Fields == nil {
		r.Fields = make(map[returns.Field]Candidate)
	}
	// A usable value is never replaced by an ambiguous mention.
	if prev, ok := r.Fields[f]; ok && prev.Presence == Present && c.Presence == Ambiguous {
		return
	}
	r.Fields[f] = c
}

func (r Result) has(f returns.Field) bool {
	c, ok := r.Fields[f]
	return ok && c.Presence == Present
}
