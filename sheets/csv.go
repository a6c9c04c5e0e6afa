package sheets

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// csvWorkbook exposes a csv export as a single sheet named after the file.
type csvWorkbook struct {
	name string
	rows [][]string
}

func openCsv(filename string, data []byte) (Workbook, error) {
	// Excel on Windows saves csv as Windows-1252
	if !utf8.Valid(data) {
		decoded, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
		if err != nil {
			return nil, fmt.Errorf("decode csv: %w", err)
		}
		data = decoded
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	return &csvWorkbook{name: name, rows: rows}, nil
}

// detectDelimiter picks ';' when the first line has more semicolons than commas.
func detectDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	if bytes.Count(line, []byte(";")) > bytes.Count(line, []byte(",")) {
		return ';'
	}
	return ','
}

func (w *csvWorkbook) SheetNames() []string {
	return []string{w.name}
}

func (w *csvWorkbook) Rows(sheet string) (RowIterator, error) {
	if sheet != w.name {
		return nil, fmt.Errorf("sheet %s does not exist", sheet)
	}
	return &sliceRows{rows: w.rows}, nil
}

func (w *csvWorkbook) Close() error {
	return nil
}
