package sheets

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lealcafe/ventas_backend/utils"
	"github.com/schollz/closestmatch"
	"github.com/shopspring/decimal"
)

const (
	// HeaderScanRows bounds the search for a header row from the top of each sheet.
	HeaderScanRows = 40
	// blank cells tolerated between two headers of one section (merged header cells)
	maxHeaderGap = 1
)

var (
	ErrEmptyWorkbook   = errors.New("workbook has no data")
	ErrSectionNotFound = errors.New("section not found in workbook")
)

// ParseError rejects a whole section (or the whole workbook when Layout is empty).
type ParseError struct {
	Layout  string            `json:"dimension,omitempty"`
	Sheet   string            `json:"sheet,omitempty"`
	Row     int               `json:"row,omitempty"`
	Reason  string            `json:"reason"`
	Missing []string          `json:"missing,omitempty"`
	Hints   map[string]string `json:"hints,omitempty"`
	Err     error             `json:"-"`
}

func (e *ParseError) Error() string {
	var b strings.Builder
	if e.Layout != "" {
		b.WriteString(e.Layout)
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	if e.Sheet != "" {
		fmt.Fprintf(&b, " (sheet %q", e.Sheet)
		if e.Row > 0 {
			fmt.Fprintf(&b, ", row %d", e.Row)
		}
		b.WriteString(")")
	}
	if len(e.Missing) > 0 {
		b.WriteString(": missing ")
		b.WriteString(strings.Join(e.Missing, ", "))
	}
	if len(e.Hints) > 0 {
		keys := make([]string, 0, len(e.Hints))
		for k := range e.Hints {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, "; found %q, did you mean %q?", e.Hints[k], k)
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parser locates report sections by header names and streams their rows.
type Parser struct {
	layouts map[string]Layout
	order   []string
	known   map[string]bool // every normalized header spelling of every layout
	anchors map[string]bool
}

func NewParser(layouts ...Layout) *Parser {
	p := &Parser{
		layouts: map[string]Layout{},
		known:   map[string]bool{},
		anchors: map[string]bool{},
	}
	for _, l := range layouts {
		p.layouts[l.Name] = l
		p.order = append(p.order, l.Name)
		for i, c := range l.Columns {
			for _, h := range c.Headers {
				p.known[NormalizeHeader(h)] = true
				if i == 0 {
					p.anchors[NormalizeHeader(h)] = true
				}
			}
		}
	}
	return p
}

// CheckWorkbook fails with a ParseError when no sheet holds a single non-blank cell.
func (p *Parser) CheckWorkbook(wb Workbook) error {
	for _, sheet := range wb.SheetNames() {
		it, err := wb.Rows(sheet)
		if err != nil {
			return &ParseError{Sheet: sheet, Reason: "sheet cannot be read", Err: err}
		}
		found := false
		for !found && it.Next() {
			cells, err := it.Columns()
			if err != nil {
				it.Close()
				return &ParseError{Sheet: sheet, Reason: "sheet cannot be read", Err: err}
			}
			for _, cell := range cells {
				if strings.TrimSpace(cell) != "" {
					found = true
					break
				}
			}
		}
		it.Close()
		if found {
			return nil
		}
	}
	return &ParseError{Reason: "workbook is empty", Err: ErrEmptyWorkbook}
}

// Section is a located header row.
type Section struct {
	Layout    Layout
	Sheet     string
	HeaderRow int
	Columns   map[string]int // field -> 0-based column index
	anchorCol int
}

type partialMatch struct {
	sheet   string
	row     int
	matched int
	missing []string
	cells   []string
	used    map[int]bool
}

// Parse locates the named section and returns a cursor positioned on its first data row.
// It returns ErrSectionNotFound when the workbook has no such section, and a *ParseError
// when the section's header row is recognisable but incomplete.
func (p *Parser) Parse(wb Workbook, name string) (*Cursor, error) {
	layout, ok := p.layouts[name]
	if !ok || len(layout.Columns) == 0 {
		return nil, fmt.Errorf("unknown layout %q", name)
	}

	var best *partialMatch
	for _, sheet := range orderSheets(wb.SheetNames(), layout.SheetNames) {
		it, err := wb.Rows(sheet)
		if err != nil {
			return nil, &ParseError{Layout: name, Sheet: sheet, Reason: "sheet cannot be read", Err: err}
		}
		sec, partial, err := p.scanHeader(it, layout, sheet)
		if err != nil {
			it.Close()
			return nil, &ParseError{Layout: name, Sheet: sheet, Reason: "sheet cannot be read", Err: err}
		}
		if sec != nil {
			return &Cursor{p: p, it: it, section: sec, rowIdx: sec.HeaderRow}, nil
		}
		it.Close()
		if partial != nil && (best == nil || partial.matched > best.matched) {
			best = partial
		}
	}
	if best != nil {
		return nil, &ParseError{
			Layout:  name,
			Sheet:   best.sheet,
			Row:     best.row,
			Reason:  "header row is incomplete",
			Missing: best.missing,
			Hints:   headerHints(best),
		}
	}
	return nil, ErrSectionNotFound
}

func (p *Parser) scanHeader(it RowIterator, layout Layout, sheet string) (*Section, *partialMatch, error) {
	anchor := layout.anchor()
	var best *partialMatch
	for row := 1; row <= HeaderScanRows && it.Next(); row++ {
		cells, err := it.Columns()
		if err != nil {
			return nil, nil, err
		}
		normalized := make([]string, len(cells))
		for i, cell := range cells {
			normalized[i] = NormalizeHeader(cell)
		}
		for c, cell := range normalized {
			if !anchor.matches(cell) || !p.sectionStart(normalized, c) {
				continue
			}
			columns, missing, matched := matchColumns(normalized, c, layout)
			if len(missing) == 0 {
				return &Section{Layout: layout, Sheet: sheet, HeaderRow: row, Columns: columns, anchorCol: c}, nil, nil
			}
			if (matched >= 2 || p.misspelledNeighbour(normalized, c)) && (best == nil || matched > best.matched) {
				used := map[int]bool{}
				for _, idx := range columns {
					used[idx] = true
				}
				best = &partialMatch{sheet: sheet, row: row, matched: matched, missing: missing, cells: normalized, used: used}
			}
		}
	}
	return nil, best, nil
}

// sectionStart rejects an anchor that continues another section's header run,
// e.g. "Clave" right after "Grupo" in the modifiers block.
func (p *Parser) sectionStart(cells []string, c int) bool {
	return c == 0 || cells[c-1] == "" || !p.known[cells[c-1]]
}

// misspelledNeighbour reports whether the first cell right of the anchor is header-like
// text no layout knows, as in "Hora | Montto". Cells with digits are values, not headers.
func (p *Parser) misspelledNeighbour(cells []string, c int) bool {
	for i := c + 1; i < len(cells) && i <= c+1+maxHeaderGap; i++ {
		if cells[i] != "" {
			return !p.known[cells[i]] && !strings.ContainsAny(cells[i], "0123456789")
		}
	}
	return false
}

// matchColumns walks right from the anchor, assigning headers in declared order.
// Only blank cells may sit between two headers, and optional headers may be skipped.
func matchColumns(cells []string, start int, layout Layout) (map[string]int, []string, int) {
	cols := layout.Columns
	assigned := map[string]int{cols[0].Field: start}
	next := 1
	gap := 0
	for c := start + 1; c < len(cells) && next < len(cols); c++ {
		if cells[c] == "" {
			gap++
			if gap > maxHeaderGap {
				break
			}
			continue
		}
		gap = 0
		k := -1
		for i := next; i < len(cols); i++ {
			if cols[i].matches(cells[c]) {
				k = i
				break
			}
			if !cols[i].Optional {
				break
			}
		}
		if k < 0 {
			break
		}
		assigned[cols[k].Field] = c
		next = k + 1
	}

	var missing []string
	for _, col := range cols {
		if _, ok := assigned[col.Field]; !ok && !col.Optional {
			missing = append(missing, col.Headers[0])
		}
	}
	return assigned, missing, len(assigned)
}

func headerHints(m *partialMatch) map[string]string {
	var candidates []string
	for i, cell := range m.cells {
		if cell != "" && !m.used[i] {
			candidates = append(candidates, cell)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	cm := closestmatch.New(candidates, []int{2, 3})
	hints := map[string]string{}
	for _, missing := range m.missing {
		if guess := cm.Closest(NormalizeHeader(missing)); guess != "" {
			hints[missing] = guess
		}
	}
	if len(hints) == 0 {
		return nil
	}
	return hints
}

// orderSheets puts sheets named like the layout first, keeping workbook order otherwise.
func orderSheets(names []string, preferred []string) []string {
	want := map[string]bool{}
	for _, p := range preferred {
		want[NormalizeHeader(p)] = true
	}
	var first, rest []string
	for _, n := range names {
		if want[NormalizeHeader(n)] {
			first = append(first, n)
		} else {
			rest = append(rest, n)
		}
	}
	return append(first, rest...)
}

// Cursor streams the data rows of one located section.
type Cursor struct {
	p        *Parser
	it       RowIterator
	section  *Section
	rowIdx   int
	current  RawRow
	failures []RowFailure
	done     bool
	err      error
}

func (c *Cursor) Section() *Section {
	return c.section
}

// Next advances to the next data row. Blank rows, padding of shorter side-by-side
// sections and "Total" lines are skipped; the section runs until the next header
// row or the end of the sheet. Rows with unreadable dates become failures.
func (c *Cursor) Next() bool {
	for !c.done {
		if !c.it.Next() {
			c.finish()
			return false
		}
		c.rowIdx++
		cells, err := c.it.Columns()
		if err != nil {
			c.err = err
			c.finish()
			return false
		}
		if c.sectionBlank(cells) {
			continue
		}

		if c.summaryRow(cells) {
			continue
		}
		anchorCol := c.section.Layout.anchor()
		if strings.TrimSpace(cellAt(cells, c.section.anchorCol)) == "" {
			c.failures = append(c.failures, RowFailure{
				Sheet:  c.section.Sheet,
				Row:    c.rowIdx,
				Field:  anchorCol.Field,
				Reason: "key column is blank",
			})
			continue
		}
		if c.looksLikeHeader(cells) {
			// a new block starts below this one
			c.finish()
			return false
		}

		row, failure := c.buildRow(cells)
		if failure != nil {
			c.failures = append(c.failures, *failure)
			continue
		}
		c.current = row
		return true
	}
	return false
}

func (c *Cursor) Row() RawRow {
	return c.current
}

// Failures lists rows rejected so far.
func (c *Cursor) Failures() []RowFailure {
	return c.failures
}

func (c *Cursor) Err() error {
	return c.err
}

func (c *Cursor) Close() error {
	if c.done {
		return nil
	}
	c.done = true
	return c.it.Close()
}

func (c *Cursor) finish() {
	if !c.done {
		c.done = true
		c.it.Close()
	}
}

func (c *Cursor) sectionBlank(cells []string) bool {
	for _, idx := range c.section.Columns {
		if strings.TrimSpace(cellAt(cells, idx)) != "" {
			return false
		}
	}
	return true
}

// summaryRow reports "Total" lines, whether the label sits in the key column or not.
func (c *Cursor) summaryRow(cells []string) bool {
	for _, idx := range c.section.Columns {
		if isSummaryLabel(cellAt(cells, idx)) {
			return true
		}
	}
	return false
}

func (c *Cursor) looksLikeHeader(cells []string) bool {
	if !c.p.anchors[NormalizeHeader(cellAt(cells, c.section.anchorCol))] {
		return false
	}
	for i := c.section.anchorCol + 1; i < len(cells); i++ {
		cell := NormalizeHeader(cells[i])
		if cell == "" {
			continue
		}
		return c.p.known[cell]
	}
	return false
}

func (c *Cursor) buildRow(cells []string) (RawRow, *RowFailure) {
	row := RawRow{Sheet: c.section.Sheet, Index: c.rowIdx, Values: make(map[string]string, len(c.section.Columns))}
	for _, col := range c.section.Layout.Columns {
		idx, ok := c.section.Columns[col.Field]
		if !ok {
			continue
		}
		val := strings.TrimSpace(cellAt(cells, idx))
		if col.Kind == KindDate && val != "" {
			iso, err := NormalizeDate(val)
			if err != nil {
				return RawRow{}, &RowFailure{
					Sheet:  c.section.Sheet,
					Row:    c.rowIdx,
					Field:  col.Field,
					Reason: fmt.Sprintf("unrecognised date %q, expected YYYY-MM-DD or DD/MM/YYYY", val),
				}
			}
			val = iso
		}
		row.Values[col.Field] = val
	}
	return row, nil
}

func cellAt(cells []string, idx int) string {
	if idx < 0 || idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// FindLabeledAmount looks in the first scanRows rows of every sheet for a cell reading
// label followed, on the same row, by a positive amount.
func FindLabeledAmount(wb Workbook, label string, scanRows int) (decimal.Decimal, bool) {
	want := NormalizeHeader(label)
	for _, sheet := range wb.SheetNames() {
		it, err := wb.Rows(sheet)
		if err != nil {
			continue
		}
		for row := 1; row <= scanRows && it.Next(); row++ {
			cells, err := it.Columns()
			if err != nil {
				break
			}
			for i, cell := range cells {
				if NormalizeHeader(cell) != want {
					continue
				}
				for _, next := range cells[i+1:] {
					if strings.TrimSpace(next) == "" {
						continue
					}
					if d, err := utils.ParseAmount(next); err == nil && d.IsPositive() {
						it.Close()
						return d, true
					}
					break
				}
			}
		}
		it.Close()
	}
	return decimal.Zero, false
}
