package returns

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrValidation matches every *ValidationError via errors.Is.
	ErrValidation = errors.New("validation failed")
	// ErrIncomplete is returned when a record is built from a field set
	// that still lacks required fields.
	ErrIncomplete = errors.New("incomplete return")
)

// Record is a committed (or about to be committed) product return.
type Record struct {
	ID           uuid.UUID `json:"id"`
	Seq          int64     `json:"seq"`
	Product      string    `json:"product"`
	Store        string    `json:"store"`
	PurchaseDate time.Time `json:"purchase_date"`
	ReturnDate   time.Time `json:"return_date"`
	Price        Amount    `json:"price"`
	Currency     string    `json:"currency"`
	Reason       string    `json:"reason"`
	Category     string    `json:"category,omitempty"`
	City         string    `json:"city,omitempty"`
	Country      string    `json:"country,omitempty"`
	DedupKey     string    `json:"dedup_key"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidationError names the field that failed and why.
type ValidationError struct {
	Field  Field
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field.Label(), e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FromFields builds a record from a complete field set.
func FromFields(f Fields) (Record, error) {
	if missing := f.Missing(); len(missing) > 0 {
		return Record{}, fmt.Errorf("%w: missing %s", ErrIncomplete, JoinLabels(missing))
	}

	purchase, err := ParseDate(f[FieldPurchaseDate])
	if err != nil {
		return Record{}, &ValidationError{Field: FieldPurchaseDate, Reason: "not a date"}
	}
	ret, err := ParseDate(f[FieldReturnDate])
	if err != nil {
		return Record{}, &ValidationError{Field: FieldReturnDate, Reason: "not a date"}
	}
	price, err := ParseAmount(f[FieldPrice])
	if err != nil {
		return Record{}, &ValidationError{Field: FieldPrice, Reason: "not a number"}
	}

	return Record{
		Product:      strings.TrimSpace(f[FieldProduct]),
		Store:        strings.TrimSpace(f[FieldStore]),
		PurchaseDate: purchase,
		ReturnDate:   ret,
		Price:        price,
		Currency:     strings.ToUpper(strings.TrimSpace(f[FieldCurrency])),
		Reason:       strings.TrimSpace(f[FieldReason]),
		Category:     strings.TrimSpace(f[FieldCategory]),
		City:         strings.TrimSpace(f[FieldCity]),
		Country:      strings.TrimSpace(f[FieldCountry]),
	}, nil
}

// Fields returns the record as a field set.
func (r Record) Fields() Fields {
	f := Fields{
		FieldProduct:      r.Product,
		FieldStore:        r.Store,
		FieldPurchaseDate: FormatDate(r.PurchaseDate),
		FieldReturnDate:   FormatDate(r.ReturnDate),
		FieldPrice:        r.Price.String(),
		FieldCurrency:     r.Currency,
		FieldReason:       r.Reason,
	}
	for k, v := range map[Field]string{FieldCategory: r.Category, FieldCity: r.City, FieldCountry: r.Country} {
		if v != "" {
			f[k] = v
		}
	}
	return f
}

// Validate checks the record invariants and reports the first violation.
func Validate(r Record) error {
	switch {
	case strings.TrimSpace(r.Product) == "":
		return &ValidationError{Field: FieldProduct, Reason: "must not be empty"}
	case strings.TrimSpace(r.Store) == "":
		return &ValidationError{Field: FieldStore, Reason: "must not be empty"}
	case r.PurchaseDate.IsZero():
		return &ValidationError{Field: FieldPurchaseDate, Reason: "must be set"}
	case r.ReturnDate.IsZero():
		return &ValidationError{Field: FieldReturnDate, Reason: "must be set"}
	case r.ReturnDate.Before(r.PurchaseDate):
		return &ValidationError{Field: FieldReturnDate, Reason: "cannot be before the purchase date"}
	case r.Price <= 0:
		return &ValidationError{Field: FieldPrice, Reason: "must be greater than zero"}
	case !IsCurrencyCode(r.Currency):
		return &ValidationError{Field: FieldCurrency, Reason: "must be a three-letter currency code"}
	case strings.TrimSpace(r.Reason) == "":
		return &ValidationError{Field: FieldReason, Reason: "must not be empty"}
	}
	return nil
}

// ValidateField checks a single canonical field value in isolation.
func ValidateField(field Field, value string) error {
	switch field {
	case FieldPrice:
		a, err := ParseAmount(value)
		if err != nil {
			return &ValidationError{Field: field, Reason: "not a number"}
		}
		if a <= 0 {
			return &ValidationError{Field: field, Reason: "must be greater than zero"}
		}
	case FieldCurrency:
		if !IsCurrencyCode(value) {
			return &ValidationError{Field: field, Reason: "must be a three-letter currency code"}
		}
	case FieldPurchaseDate, FieldReturnDate:
		if _, err := ParseDate(value); err != nil {
			return &ValidationError{Field: field, Reason: "not a date"}
		}
	default:
		if strings.TrimSpace(value) == "" {
			return &ValidationError{Field: field, Reason: "must not be empty"}
		}
	}
	return nil
}

// IsCurrencyCode reports whether s is three upper-case ASCII letters.
func IsCurrencyCode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if s[i] < 'A' || s[i] > 'Z' {
			return false
		}
	}
	return true
}

// ParseDate parses a canonical DateLayout value as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// FormatDate renders t as a canonical calendar date.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
