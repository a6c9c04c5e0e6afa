package sheets

import (
	"errors"
	"testing"

	"github.com/xuri/excelize/v2"
)

var (
	hourLayout = Layout{
		Name:       "hora",
		SheetNames: []string{"Ventas por hora"},
		Columns: []Column{
			{Field: "hora", Headers: []string{"Hora"}},
			{Field: "monto", Headers: []string{"Monto", "Ventas"}, Kind: KindNumber},
		},
	}
	groupLayout = Layout{
		Name: "grupo",
		Columns: []Column{
			{Field: "grupo", Headers: []string{"Grupo"}},
			{Field: "subtotal", Headers: []string{"Subtotal"}, Kind: KindNumber},
		},
	}
	groupTypeLayout = Layout{
		Name: "tipo_grupo",
		Columns: []Column{
			{Field: "grupo", Headers: []string{"Grupo"}},
			{Field: "cantidad", Headers: []string{"Cantidad"}, Kind: KindNumber},
			{Field: "subtotal", Headers: []string{"Subtotal"}, Kind: KindNumber},
			{Field: "iva", Headers: []string{"IVA"}, Kind: KindNumber},
			{Field: "total", Headers: []string{"Total"}, Kind: KindNumber, Optional: true},
			{Field: "porcentaje", Headers: []string{"Porcentaje", "%"}, Kind: KindNumber},
		},
	}
	lineLayout = Layout{
		Name: "ventas",
		Columns: []Column{
			{Field: "fecha", Headers: []string{"Fecha"}, Kind: KindDate},
			{Field: "producto", Headers: []string{"Producto"}},
			{Field: "cantidad", Headers: []string{"Cantidad"}, Kind: KindNumber},
			{Field: "precio_unitario", Headers: []string{"Precio unitario"}, Kind: KindNumber},
			{Field: "total", Headers: []string{"Total"}, Kind: KindNumber, Optional: true},
		},
	}
)

func newTestWorkbook(t *testing.T, sheets map[string][][]interface{}, order ...string) Workbook {
	t.Helper()
	f := excelize.NewFile()
	for _, name := range order {
		if name != "Sheet1" {
			if _, err := f.NewSheet(name); err != nil {
				t.Fatalf("NewSheet(%s): %v", name, err)
			}
		}
		for i, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				t.Fatalf("cell name: %v", err)
			}
			r := row
			if err := f.SetSheetRow(name, cell, &r); err != nil {
				t.Fatalf("SetSheetRow: %v", err)
			}
		}
	}
	return FromExcelize(f)
}

func collect(t *testing.T, p *Parser, wb Workbook, layout string) ([]RawRow, []RowFailure) {
	t.Helper()
	cur, err := p.Parse(wb, layout)
	if err != nil {
		t.Fatalf("Parse(%s): %v", layout, err)
	}
	defer cur.Close()
	var rows []RawRow
	for cur.Next() {
		rows = append(rows, cur.Row())
	}
	if cur.Err() != nil {
		t.Fatalf("cursor error: %v", cur.Err())
	}
	return rows, cur.Failures()
}

func TestParse_LocatesHeaderBelowTitleAndSkipsTrailingRows(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Ventas por hora": {
			{"Reporte de ventas por hora"},
			{""},
			{"Hora", "Monto"},
			{"08:00", 1200.5},
			{"09:00", "$1,500.00"},
			{"Total", 2700.5},
			{""},
			{""},
		},
	}, "Ventas por hora")
	p := NewParser(hourLayout)

	rows, failures := collect(t, p, wb, "hora")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d: %+v", len(rows), rows)
	}
	if rows[0].Index != 4 || rows[0].Values["hora"] != "08:00" || rows[0].Values["monto"] != "1200.5" {
		t.Fatalf("unexpected first row: %+v", rows[0])
	}
	if v, _ := rows[1].Get("monto"); v != "$1,500.00" {
		t.Fatalf("unexpected monto %q", v)
	}
}

func TestParse_SideBySideSectionsByHeaderName(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Sucursal Centro"},
			{"Hora", "Monto", "", "Grupo", "Subtotal", "", "Grupo", "Cantidad", "Subtotal", "IVA", "Total", "%"},
			{"08:00", 100, "", "Bebidas", 500, "", "Alimentos", 10, 862.07, 137.93, 1000, 66.67},
			{"09:00", 200, "", "Postres", 250, "", "Bebidas", 5, 431.03, 68.97, 500, 33.33},
			{"10:00", 300, "", "", "", "", "", "", "", "", "", ""},
		},
	}, "Sheet1")
	p := NewParser(hourLayout, groupLayout, groupTypeLayout)

	hours, _ := collect(t, p, wb, "hora")
	if len(hours) != 3 {
		t.Fatalf("expected 3 hour rows, got %d", len(hours))
	}

	groups, failures := collect(t, p, wb, "grupo")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(groups) != 2 || groups[1].Values["grupo"] != "Postres" || groups[1].Values["subtotal"] != "250" {
		t.Fatalf("unexpected group rows: %+v", groups)
	}

	types, _ := collect(t, p, wb, "tipo_grupo")
	if len(types) != 2 {
		t.Fatalf("expected 2 group type rows, got %d", len(types))
	}
	if types[0].Values["grupo"] != "Alimentos" || types[0].Values["total"] != "1000" || types[0].Values["porcentaje"] != "66.67" {
		t.Fatalf("unexpected group type row: %+v", types[0])
	}
}

func TestParse_OptionalColumnAbsent(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Grupo", "Cantidad", "Subtotal", "IVA", "%"},
			{"Bebidas", 3, 100, 16, 100},
		},
	}, "Sheet1")
	p := NewParser(groupTypeLayout)

	rows, _ := collect(t, p, wb, "tipo_grupo")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if _, ok := rows[0].Get("total"); ok {
		t.Fatalf("total should be absent when its header is missing")
	}
}

func TestParse_IncompleteHeaderIsParseError(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Grupo", "Cantidad", "Subtotal", "IVA", "Total", "Porcentje"},
			{"Bebidas", 3, 100, 16, 116, 100},
		},
	}, "Sheet1")
	p := NewParser(groupLayout, groupTypeLayout)

	_, err := p.Parse(wb, "tipo_grupo")
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if len(perr.Missing) != 1 || perr.Missing[0] != "Porcentaje" {
		t.Fatalf("unexpected missing headers: %v", perr.Missing)
	}
	if perr.Row != 1 || perr.Sheet != "Sheet1" {
		t.Fatalf("unexpected location: %+v", perr)
	}
	if perr.Hints["Porcentaje"] != "porcentje" {
		t.Fatalf("expected hint for Porcentaje, got %v", perr.Hints)
	}

	// a two column section that does not exist is simply absent
	if _, err := p.Parse(wb, "grupo"); !errors.Is(err, ErrSectionNotFound) {
		t.Fatalf("expected ErrSectionNotFound, got %v", err)
	}
}

func TestParse_BothDateFormatsNormalizeToIso(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Fecha", "Producto", "Cantidad", "Precio unitario"},
			{"2024-01-15", "Latte", 2, 45},
			{"15/01/2024", "Latte", 1, 45},
			{"31/31/2024", "Mocha", 1, 50},
			{"", "Espresso", 1, 30},
		},
	}, "Sheet1")
	p := NewParser(lineLayout)

	rows, failures := collect(t, p, wb, "ventas")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Values["fecha"] != "2024-01-15" || rows[1].Values["fecha"] != "2024-01-15" {
		t.Fatalf("dates not normalized: %q %q", rows[0].Values["fecha"], rows[1].Values["fecha"])
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %+v", failures)
	}
	if failures[0].Row != 4 || failures[0].Field != "fecha" {
		t.Fatalf("unexpected date failure: %+v", failures[0])
	}
	if failures[1].Row != 5 || failures[1].Reason != "key column is blank" {
		t.Fatalf("unexpected blank key failure: %+v", failures[1])
	}
}

func TestCheckWorkbook_Empty(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {{""}, {"  "}},
	}, "Sheet1")
	p := NewParser(hourLayout)

	err := p.CheckWorkbook(wb)
	var perr *ParseError
	if !errors.As(err, &perr) || !errors.Is(err, ErrEmptyWorkbook) {
		t.Fatalf("expected empty workbook ParseError, got %v", err)
	}
}

func TestOpen_DetectsXlsxAndCsv(t *testing.T) {
	f := excelize.NewFile()
	if err := f.SetSheetRow("Sheet1", "A1", &[]interface{}{"Hora", "Monto"}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	if err := f.SetSheetRow("Sheet1", "A2", &[]interface{}{"08:00", 10}); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("WriteToBuffer: %v", err)
	}
	p := NewParser(hourLayout)

	// the extension does not matter for xlsx content
	wb, err := Open("reporte.bin", buf.Bytes())
	if err != nil {
		t.Fatalf("Open xlsx: %v", err)
	}
	rows, _ := collect(t, p, wb, "hora")
	if len(rows) != 1 || rows[0].Values["monto"] != "10" {
		t.Fatalf("unexpected xlsx rows: %+v", rows)
	}

	csvData := []byte("Hora;Monto\n08:00;\"1,200.50\"\n09:00;80\n")
	wb, err = Open("ventas_hora.csv", csvData)
	if err != nil {
		t.Fatalf("Open csv: %v", err)
	}
	if names := wb.SheetNames(); len(names) != 1 || names[0] != "ventas_hora" {
		t.Fatalf("unexpected csv sheet names: %v", names)
	}
	rows, _ = collect(t, p, wb, "hora")
	if len(rows) != 2 || rows[0].Values["monto"] != "1,200.50" {
		t.Fatalf("unexpected csv rows: %+v", rows)
	}

	if _, err := Open("notes.txt", []byte("hello")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestFindLabeledAmount(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Leal Café"},
			{"Ventas", "", "$12,500.75"},
			{"Hora", "Monto"},
		},
	}, "Sheet1")

	d, ok := FindLabeledAmount(wb, "ventas", 10)
	if !ok || d.String() != "12500.75" {
		t.Fatalf("expected 12500.75, got %s (found=%v)", d, ok)
	}
}

func TestParse_MisspelledSecondHeaderIsParseError(t *testing.T) {
	paymentLayout := Layout{
		Name: "tipo_pago",
		Columns: []Column{
			{Field: "tipo_pago", Headers: []string{"Tipo de pago"}},
			{Field: "total", Headers: []string{"Total"}, Kind: KindNumber},
			{Field: "porcentaje", Headers: []string{"%"}, Kind: KindNumber},
		},
	}
	cases := []struct {
		name    string
		header  []interface{}
		wantErr bool
	}{
		{"misspelled measure", []interface{}{"Hora", "Montto", "", "Tipo de pago", "Total", "%"}, true},
		{"misspelled after merged gap", []interface{}{"Hora", "", "Mnto"}, true},
		{"anchor next to a value", []interface{}{"Hora", "08:00 a 22:00"}, false},
		{"anchor next to another section", []interface{}{"Hora", "Tipo de pago", "Total", "%"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			wb := newTestWorkbook(t, map[string][][]interface{}{
				"Sheet1": {tc.header, {"08:00", 800.25}},
			}, "Sheet1")
			p := NewParser(hourLayout, paymentLayout)

			_, err := p.Parse(wb, "hora")
			var perr *ParseError
			if tc.wantErr {
				if !errors.As(err, &perr) {
					t.Fatalf("expected ParseError, got %v", err)
				}
				if len(perr.Missing) != 1 || perr.Missing[0] != "Monto" {
					t.Fatalf("unexpected missing headers: %v", perr.Missing)
				}
				return
			}
			if !errors.Is(err, ErrSectionNotFound) {
				t.Fatalf("expected ErrSectionNotFound, got %v", err)
			}
		})
	}
}

func TestParse_RowsAfterBlankGapStayInSection(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Grupo", "Subtotal"},
			{"Bebidas", 500},
			{""},
			{""},
			{""},
			{""},
			{"Postres", 250},
		},
	}, "Sheet1")
	p := NewParser(groupLayout)

	rows, failures := collect(t, p, wb, "grupo")
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %+v", failures)
	}
	if len(rows) != 2 || rows[1].Values["grupo"] != "Postres" || rows[1].Index != 7 {
		t.Fatalf("expected Postres on row 7 to be kept, got %+v", rows)
	}
}

func TestParse_NextHeaderEndsSection(t *testing.T) {
	wb := newTestWorkbook(t, map[string][][]interface{}{
		"Sheet1": {
			{"Grupo", "Subtotal"},
			{"Bebidas", 500},
			{""},
			{"Hora", "Monto"},
			{"08:00", 100},
		},
	}, "Sheet1")
	p := NewParser(groupLayout, hourLayout)

	groups, _ := collect(t, p, wb, "grupo")
	if len(groups) != 1 || groups[0].Values["grupo"] != "Bebidas" {
		t.Fatalf("unexpected group rows: %+v", groups)
	}
}
