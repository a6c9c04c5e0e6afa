package sheets

import (
	"fmt"
	"os"

	"github.com/shakinm/xlsReader/xls"
)

type xlsWorkbook struct {
	names  []string
	sheets map[string]*xlsSheet
}

type xlsSheet struct {
	wb    *xls.Workbook
	index int
}

// openXls needs a real file because xlsReader only opens paths.
func openXls(data []byte) (Workbook, error) {
	tempFile, err := os.CreateTemp("", "ventas-*.xls")
	if err != nil {
		return nil, fmt.Errorf("create temp xls: %w", err)
	}
	defer os.Remove(tempFile.Name())

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("write temp xls: %w", err)
	}
	tempFile.Close()

	workbook, err := xls.OpenFile(tempFile.Name())
	if err != nil {
		return nil, fmt.Errorf("open xls: %w", err)
	}

	w := &xlsWorkbook{sheets: map[string]*xlsSheet{}}
	for i := 0; i < workbook.GetNumberSheets(); i++ {
		sheet, err := workbook.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		name := sheet.GetName()
		w.names = append(w.names, name)
		w.sheets[name] = &xlsSheet{wb: &workbook, index: i}
	}
	return w, nil
}

func (w *xlsWorkbook) SheetNames() []string {
	return w.names
}

func (w *xlsWorkbook) Rows(name string) (RowIterator, error) {
	s, ok := w.sheets[name]
	if !ok {
		return nil, fmt.Errorf("sheet %s does not exist", name)
	}
	sheet, err := s.wb.GetSheet(s.index)
	if err != nil {
		return nil, err
	}
	// GetNumberRows may report the last index rather than a count; an extra read is a blank row.
	return &xlsRows{sheet: sheet, total: int(sheet.GetNumberRows()) + 1, pos: -1}, nil
}

func (w *xlsWorkbook) Close() error {
	return nil
}

// xlsRows reads one BIFF row per Next call.
type xlsRows struct {
	sheet *xls.Sheet
	total int
	pos   int
}

func (r *xlsRows) Next() bool {
	r.pos++
	return r.pos < r.total
}

func (r *xlsRows) Columns() ([]string, error) {
	row, err := r.sheet.GetRow(r.pos)
	if err != nil || row == nil {
		// rows without cells are not stored in the file
		return nil, nil
	}
	var cells []string
	for _, col := range row.GetCols() {
		if col == nil {
			cells = append(cells, "")
			continue
		}
		cells = append(cells, col.GetString())
	}
	return cells, nil
}

func (r *xlsRows) Close() error {
	return nil
}
