package sheets

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")

// Workbook is a read-only view over an uploaded spreadsheet.
type Workbook interface {
	SheetNames() []string
	// Rows opens a forward-only iterator; callers must Close it.
	Rows(sheet string) (RowIterator, error)
	Close() error
}

// RowIterator yields rows top to bottom, including empty ones.
type RowIterator interface {
	Next() bool
	Columns() ([]string, error)
	Close() error
}

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	oleMagic = []byte{0xD0, 0xCF, 0x11, 0xE0}
)

// Open detects the format from the file content, falling back to the extension for csv.
func Open(filename string, data []byte) (Workbook, error) {
	switch {
	case bytes.HasPrefix(data, zipMagic):
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open xlsx: %w", err)
		}
		return FromExcelize(f), nil
	case bytes.HasPrefix(data, oleMagic):
		return openXls(data)
	case strings.EqualFold(filepath.Ext(filename), ".csv"):
		return openCsv(filename, data)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
}

type xlsxWorkbook struct {
	f *excelize.File
}

// FromExcelize wraps an already opened excelize file.
func FromExcelize(f *excelize.File) Workbook {
	return &xlsxWorkbook{f: f}
}

func (w *xlsxWorkbook) SheetNames() []string {
	return w.f.GetSheetList()
}

func (w *xlsxWorkbook) Rows(sheet string) (RowIterator, error) {
	rows, err := w.f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	return &xlsxRows{rows: rows}, nil
}

func (w *xlsxWorkbook) Close() error {
	return w.f.Close()
}

// xlsxRows adapts excelize.Rows, whose Columns takes options.
type xlsxRows struct {
	rows *excelize.Rows
}

func (r *xlsxRows) Next() bool {
	return r.rows.Next()
}

func (r *xlsxRows) Columns() ([]string, error) {
	return r.rows.Columns()
}

func (r *xlsxRows) Close() error {
	return r.rows.Close()
}

// sliceRows serves rows already held in memory (xls and csv).
type sliceRows struct {
	rows [][]string
	pos  int
}

func (r *sliceRows) Next() bool {
	if r.pos >= len(r.rows) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Columns() ([]string, error) {
	if r.pos == 0 || r.pos > len(r.rows) {
		return nil, errors.New("Columns called without Next")
	}
	return r.rows[r.pos-1], nil
}

func (r *sliceRows) Close() error {
	return nil
}
