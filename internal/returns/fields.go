package returns

import (
	"strings"
)

// Field names a slot of a return record as collected from conversation turns.
type Field string

const (
	FieldProduct      Field = "product"
	FieldStore        Field = "store"
	FieldPurchaseDate Field = "purchase_date"
	FieldReturnDate   Field = "return_date"
	FieldPrice        Field = "price"
	FieldCurrency     Field = "currency"
	FieldReason       Field = "reason"

	// Optional attributes, never required and never part of the dedup key.
	FieldCategory Field = "category"
	FieldCity     Field = "city"
	FieldCountry  Field = "country"
)

// DateLayout is the canonical date format for field values and dedup keys.
const DateLayout = "2006-01-02"

// RequiredFields is the ordered set of fields an insert needs before commit.
// Follow-up questions list missing fields in this order.
var RequiredFields = []Field{
	FieldProduct,
	FieldStore,
	FieldPurchaseDate,
	FieldReturnDate,
	FieldPrice,
	FieldCurrency,
	FieldReason,
}

var labels = map[Field]string{
	FieldProduct:      "product",
	FieldStore:        "store",
	FieldPurchaseDate: "purchase date",
	FieldReturnDate:   "return date",
	FieldPrice:        "price",
	FieldCurrency:     "currency",
	FieldReason:       "reason for the return",
	FieldCategory:     "product category",
	FieldCity:         "city",
	FieldCountry:      "country",
}

// Label returns the human wording used in follow-up questions.
func (f Field) Label() string {
	if l, ok := labels[f]; ok {
		return l
	}
	return strings.ReplaceAll(string(f), "_", " ")
}

// Fields is an accumulated field set. Values are canonical strings: dates in
// DateLayout, prices as Amount.String(), currencies upper-case.
type Fields map[Field]string

// Has reports whether f holds a non-blank value for field.
func (f Fields) Has(field Field) bool {
	return strings.TrimSpace(f[field]) != ""
}

// Missing returns the required fields that have no value, in RequiredFields order.
func (f Fields) Missing() []Field {
	var missing []Field
	for _, field := range RequiredFields {
		if !f.Has(field) {
			missing = append(missing, field)
		}
	}
	return missing
}

// Complete reports whether every required field is present.
func (f Fields) Complete() bool {
	return len(f.Missing()) == 0
}

// Clone returns an independent copy.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge writes every non-blank value of other into f. Last write wins.
func (f Fields) Merge(other Fields) {
	for k, v := range other {
		if strings.TrimSpace(v) == "" {
			continue
		}
		f[k] = v
	}
}

// JoinLabels renders fields as "a, b and c".
func JoinLabels(fields []Field) string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Label()
	}
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
