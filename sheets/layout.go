package sheets

import "strings"

type ColumnKind int

const (
	KindText ColumnKind = iota
	KindNumber
	KindDate
)

// Column describes one expected header of a report section.
type Column struct {
	Field    string   // canonical field name, e.g. "clave_platillo"
	Headers  []string // accepted header spellings, matched after NormalizeHeader
	Kind     ColumnKind
	Optional bool // the header may be missing from the sheet
}

// Layout is the declarative shape of one report section.
// Columns[0] is the anchor: a data row exists when its anchor cell is not blank.
type Layout struct {
	Name       string
	SheetNames []string // sheets searched first, e.g. "Ventas por hora"
	Columns    []Column
}

func (l Layout) anchor() Column {
	return l.Columns[0]
}

// ExpectedHeaders lists the first spelling of every column, optional ones suffixed with "?".
func (l Layout) ExpectedHeaders() []string {
	out := make([]string, 0, len(l.Columns))
	for _, c := range l.Columns {
		h := c.Field
		if len(c.Headers) > 0 {
			h = c.Headers[0]
		}
		if c.Optional {
			h += "?"
		}
		out = append(out, h)
	}
	return out
}

func (c Column) matches(normalizedCell string) bool {
	if normalizedCell == "" {
		return false
	}
	for _, h := range c.Headers {
		if NormalizeHeader(h) == normalizedCell {
			return true
		}
	}
	return false
}

// RawRow is one data row of a located section, keyed by canonical field.
// Fields whose optional header is absent from the sheet are not present in Values.
type RawRow struct {
	Sheet  string
	Index  int // 1-based row number as shown by the spreadsheet application
	Values map[string]string
}

// Get returns the trimmed cell text and whether the column exists in the sheet.
func (r RawRow) Get(field string) (string, bool) {
	v, ok := r.Values[field]
	return strings.TrimSpace(v), ok
}

// RowFailure is a data row that could not be turned into a RawRow.
type RowFailure struct {
	Sheet  string `json:"sheet"`
	Row    int    `json:"row"`
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason"`
}
