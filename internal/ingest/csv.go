package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/MikeSquared-Agency/clerk/internal/returns"
)

// ErrMalformed marks a row that cannot become a record.
var ErrMalformed = errors.New("malformed row")

// columnAliases maps accepted header names to record fields.
var columnAliases = map[string]returns.Field{
	"product":          returns.FieldProduct,
	"product_name":     returns.FieldProduct,
	"store":            returns.FieldStore,
	"store_name":       returns.FieldStore,
	"purchase_date":    returns.FieldPurchaseDate,
	"return_date":      returns.FieldReturnDate,
	"price":            returns.FieldPrice,
	"currency":         returns.FieldCurrency,
	"reason":           returns.FieldReason,
	"reason_raw":       returns.FieldReason,
	"category":         returns.FieldCategory,
	"product_category": returns.FieldCategory,
	"city":             returns.FieldCity,
	"country":          returns.FieldCountry,
}

// Row is one parsed CSV line. Err is set when the line is malformed; Line is
// the 1-based line number in the file, header included.
type Row struct {
	Line   int
	Record returns.Record
	Err    error
}

// Reader yields records from a returns CSV with a header line.
type Reader struct {
	csv     *csv.Reader
	columns map[int]returns.Field
	line    int
}

func NewReader(r io.Reader) (*Reader, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	columns := make(map[int]returns.Field, len(header))
	seen := make(map[returns.Field]bool)
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if f, ok := columnAliases[name]; ok && !seen[f] {
			columns[i] = f
			seen[f] = true
		}
	}

	var missing []returns.Field
	for _, f := range returns.RequiredFields {
		if !seen[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("header lacks %s", returns.JoinLabels(missing))
	}

	return &Reader{csv: cr, columns: columns, line: 1}, nil
}

// Next returns the next row, or io.EOF when the file is exhausted.
func (r *Reader) Next() (Row, error) {
	cells, err := r.csv.Read()
	if err == io.EOF {
		return Row{}, io.EOF
	}
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return Row{Line: perr.StartLine, Err: fmt.Errorf("%w: %v", ErrMalformed, err)}, nil
		}
		return Row{}, err
	}
	r.line, _ = r.csv.FieldPos(0)

	fields := make(returns.Fields, len(r.columns))
	for i, f := range r.columns {
		if i < len(cells) {
			if v := strings.TrimSpace(cells[i]); v != "" {
				fields[f] = v
			}
		}
	}
	if c, ok := fields[returns.FieldCurrency]; ok {
		fields[returns.FieldCurrency] = strings.ToUpper(c)
	}

	rec, err := returns.FromFields(fields)
	if err != nil {
		return Row{Line: r.line, Err: fmt.Errorf("%w: %w", ErrMalformed, err)}, nil
	}
	return Row{Line: r.line, Record: rec}, nil
}
