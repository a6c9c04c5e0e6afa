package models

import (
	"errors"
	"testing"
	"time"

	"github.com/lealcafe/ventas_backend/sheets"
	"github.com/shopspring/decimal"
)

var testPeriod = Period{Sucursal: "Centro", Anio: 2024, Mes: 3, Semana: 2}

func raw(index int, values map[string]string) sheets.RawRow {
	return sheets.RawRow{Sheet: "Sheet1", Index: index, Values: values}
}

func mustDecimal(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("decimal %q: %v", s, err)
	}
	return d
}

func TestNormalizePaymentType(t *testing.T) {
	cases := []struct {
		name      string
		values    map[string]string
		wantTotal string
		wantPct   string
	}{
		{"plain", map[string]string{"tipo_pago": "Efectivo", "total": "1200.50", "porcentaje": "60"}, "1200.50", "60"},
		{"formatted", map[string]string{"tipo_pago": " Tarjeta ", "total": "$ 1,200.505", "porcentaje": "45.5 %"}, "1200.51", "45.5"},
		{"blank percentage", map[string]string{"tipo_pago": "Vales", "total": "MXN 80", "porcentaje": ""}, "80", "0"},
	}
	for _, tc := range cases {
		rec, err := NormalizeRow(DimensionPaymentType, testPeriod, "ana", raw(5, tc.values))
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		got, ok := rec.(SalesByPaymentType)
		if !ok {
			t.Fatalf("%s: got %T", tc.name, rec)
		}
		if !got.Total.Equal(mustDecimal(t, tc.wantTotal)) {
			t.Fatalf("%s: total=%s want %s", tc.name, got.Total, tc.wantTotal)
		}
		if !got.Porcentaje.Equal(mustDecimal(t, tc.wantPct)) {
			t.Fatalf("%s: porcentaje=%s want %s", tc.name, got.Porcentaje, tc.wantPct)
		}
		if got.Sucursal != "Centro" || got.Anio != 2024 || got.Mes != 3 || got.Semana != 2 || got.CreatedBy != "ana" {
			t.Fatalf("%s: period not stamped: %+v", tc.name, got.SalesBase)
		}
	}
}

func TestNormalizeDerivesTotals(t *testing.T) {
	rec, err := NormalizeRow(DimensionGroupType, testPeriod, "ana", raw(3, map[string]string{
		"grupo": "Bebidas", "cantidad": "12", "subtotal": "100.00", "iva": "16.00", "total": "", "porcentaje": "10",
	}))
	if err != nil {
		t.Fatalf("group type: %v", err)
	}
	if got := rec.(SalesByGroupType).Total; !got.Equal(mustDecimal(t, "116")) {
		t.Fatalf("group type total=%s want 116", got)
	}

	// absent column behaves like a blank cell
	rec, err = NormalizeRow(DimensionCashier, testPeriod, "ana", raw(4, map[string]string{
		"cajero": "Luis", "subtotal": "50", "iva": "8", "cantidad_transacciones": "3", "porcentaje": "5",
	}))
	if err != nil {
		t.Fatalf("cashier: %v", err)
	}
	if got := rec.(SalesByCashier).Total; !got.Equal(mustDecimal(t, "58")) {
		t.Fatalf("cashier total=%s want 58", got)
	}

	// supplied total is kept even when it disagrees
	rec, err = NormalizeRow(DimensionUser, testPeriod, "ana", raw(4, map[string]string{
		"usuario": "Mesero 1", "subtotal": "50", "iva": "8", "total": "60", "num_cuentas": "2",
		"ticket_promedio": "30", "num_personas": "4", "promedio_por_persona": "15", "porcentaje": "1",
	}))
	if err != nil {
		t.Fatalf("user: %v", err)
	}
	if got := rec.(SalesByUser).Total; !got.Equal(mustDecimal(t, "60")) {
		t.Fatalf("user total=%s want 60", got)
	}

	rec, err = NormalizeRow(DimensionLine, testPeriod, "ana", raw(8, map[string]string{
		"fecha": "2024-03-05", "producto": "Latte", "cantidad": "3", "precio_unitario": "45.50",
	}))
	if err != nil {
		t.Fatalf("line: %v", err)
	}
	line := rec.(SalesLine)
	if !line.Total.Equal(mustDecimal(t, "136.50")) {
		t.Fatalf("line total=%s want 136.50", line.Total)
	}
	if !line.Fecha.Equal(time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("line fecha=%s", line.Fecha)
	}
}

func TestNormalizeRejectsRows(t *testing.T) {
	cases := []struct {
		name      string
		dim       Dimension
		values    map[string]string
		wantField string
	}{
		{"blank key", DimensionHour, map[string]string{"hora": "  ", "monto": "10"}, "hora"},
		{"text amount", DimensionHour, map[string]string{"hora": "08:00", "monto": "diez"}, "monto"},
		{"blank amount", DimensionGroup, map[string]string{"grupo": "Postres", "subtotal": ""}, "subtotal"},
		{"fractional count", DimensionDish, map[string]string{"clave_platillo": "P1", "cantidad": "1.5", "subtotal": "10", "porcentaje": "1"}, "cantidad"},
		{"bad percentage", DimensionDish, map[string]string{"clave_platillo": "P1", "cantidad": "1", "subtotal": "10", "porcentaje": "n/a"}, "porcentaje"},
		{"date outside month", DimensionLine, map[string]string{"fecha": "2024-04-01", "producto": "Latte", "cantidad": "1", "precio_unitario": "1"}, "fecha"},
		{"bad date", DimensionLine, map[string]string{"fecha": "ayer", "producto": "Latte", "cantidad": "1", "precio_unitario": "1"}, "fecha"},
	}
	for _, tc := range cases {
		_, err := NormalizeRow(tc.dim, testPeriod, "ana", raw(9, tc.values))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected *ValidationError, got %v", tc.name, err)
		}
		if verr.Field != tc.wantField || verr.Row != 9 || verr.Dimension != tc.dim {
			t.Fatalf("%s: got %+v", tc.name, verr)
		}
		if ErrorType(err) != "ValidationError" {
			t.Fatalf("%s: ErrorType=%s", tc.name, ErrorType(err))
		}
	}
}

func TestNormalizeModifierSize(t *testing.T) {
	rec, err := NormalizeRow(DimensionModifier, testPeriod, "ana", raw(2, map[string]string{
		"grupo": "Cafe", "clave_platillo": "LAT", "cantidad": "4", "subtotal": "180",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m := rec.(SalesByModifier)
	if m.Tamano != "" {
		t.Fatalf("tamano=%q want empty", m.Tamano)
	}
	keys := m.KeyValues()
	if len(keys) != 3 || keys[2] != "" {
		t.Fatalf("keys=%v", keys)
	}
}

func TestDedupeRowsLastWins(t *testing.T) {
	mk := func(row int, hora, monto string) NormalizedRow {
		return NormalizedRow{Row: row, Record: SalesByHour{Hora: hora, Monto: mustDecimal(t, monto)}}
	}
	rows := []NormalizedRow{mk(2, "08:00", "10"), mk(3, "09:00", "20"), mk(4, "08:00", "30")}

	kept, dropped := DedupeRows(DimensionHour, rows)
	if len(kept) != 2 {
		t.Fatalf("kept=%d want 2", len(kept))
	}
	if kept[0].Row != 3 || kept[1].Row != 4 {
		t.Fatalf("unexpected order: %d, %d", kept[0].Row, kept[1].Row)
	}
	if !kept[1].Record.(SalesByHour).Monto.Equal(mustDecimal(t, "30")) {
		t.Fatalf("last occurrence did not win")
	}
	if len(dropped) != 1 || dropped[0].Row != 2 {
		t.Fatalf("dropped=%v", dropped)
	}

	unique := rows[:2]
	kept, dropped = DedupeRows(DimensionHour, unique)
	if len(kept) != 2 || dropped != nil {
		t.Fatalf("unique rows changed: kept=%d dropped=%v", len(kept), dropped)
	}
}

func TestDedupeKeyModifierSize(t *testing.T) {
	a := SalesByModifier{Grupo: "Cafe", ClavePlatillo: "LAT", Tamano: "Grande"}
	b := SalesByModifier{Grupo: "Cafe", ClavePlatillo: "LAT", Tamano: "Chico"}
	c := SalesByModifier{Grupo: "Cafe", ClavePlatillo: "LAT"}
	if DedupeKey(a) == DedupeKey(b) || DedupeKey(a) == DedupeKey(c) {
		t.Fatalf("sizes must produce distinct keys")
	}
}
