package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// keyVersion prefixes the canonical form so a future change of
// canonicalization rules produces a disjoint key space.
const keyVersion = "v1"

// delimiter is the ASCII unit separator; it cannot survive canonicalization
// inside a field value, so field boundaries stay unambiguous.
const delimiter = "\x1f"

var folder = cases.Fold()

// Key returns the dedup key of a return: the hex SHA-256 of its canonical
// identity. Reason and optional attributes are not part of the identity.
func Key(r returns.Record) string {
	sum := sha256.Sum256([]byte(Canonical(r)))
	return hex.EncodeToString(sum[:])
}

// Canonical renders the six identity fields of r in canonical form.
func Canonical(r returns.Record) string {
	parts := []string{
		keyVersion,
		CanonicalText(r.Product),
		CanonicalText(r.Store),
		returns.FormatDate(r.PurchaseDate),
		returns.FormatDate(r.ReturnDate),
		r.Price.String(),
		strings.ToUpper(strings.TrimSpace(r.Currency)),
	}
	return strings.Join(parts, delimiter)
}

// CanonicalText normalizes a free-text identity field: NFKC, Unicode case
// folding, control characters dropped and whitespace runs collapsed.
func CanonicalText(s string) string {
	s = folder.String(norm.NFKC.String(s))
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}
