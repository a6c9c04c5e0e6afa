package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lealcafe/ventas_backend/sheets"
	"github.com/lealcafe/ventas_backend/utils"
	"github.com/shopspring/decimal"
)

// NormalizedRow keeps the source row number next to the typed record for warnings.
type NormalizedRow struct {
	Row    int
	Record SalesRecord
}

// NormalizeRow turns one parsed row into the typed record of dim.
// Failures are *ValidationError; the caller skips the row and keeps going.
func NormalizeRow(dim Dimension, period Period, createdBy string, raw sheets.RawRow) (SalesRecord, error) {
	spec, ok := SpecFor(dim)
	if !ok {
		return nil, fmt.Errorf("unknown dimension %q", dim)
	}
	r := &rowReader{dim: dim, raw: raw, period: period}
	rec := spec.normalize(r)
	if r.err != nil {
		return nil, r.err
	}
	return withBase(rec, SalesBase{
		Sucursal:  period.Sucursal,
		Anio:      period.Anio,
		Mes:       period.Mes,
		Semana:    period.Semana,
		CreatedBy: createdBy,
	}), nil
}

// rowReader reads typed cells and keeps the first failure.
type rowReader struct {
	dim    Dimension
	raw    sheets.RawRow
	period Period
	err    *ValidationError
}

func (r *rowReader) fail(field, value, reason string) {
	if r.err == nil {
		r.err = &ValidationError{Dimension: r.dim, Row: r.raw.Index, Field: field, Value: value, Reason: reason}
	}
}

func (r *rowReader) text(field string) string {
	v, _ := r.raw.Get(field)
	return strings.Join(strings.Fields(v), " ")
}

func (r *rowReader) key(field string) string {
	v := r.text(field)
	if v == "" {
		r.fail(field, "", "is required")
	}
	return v
}

// amount reads a required monetary cell rounded to cents.
func (r *rowReader) amount(field string) decimal.Decimal {
	v, _ := r.raw.Get(field)
	d, err := utils.ParseAmount(v)
	if err != nil {
		r.numberFailure(field, v, err)
		return decimal.Zero
	}
	return d.Round(2)
}

// optionalAmount is false when the column is absent or the cell blank.
func (r *rowReader) optionalAmount(field string) (decimal.Decimal, bool) {
	v, ok := r.raw.Get(field)
	if !ok || v == "" {
		return decimal.Zero, false
	}
	return r.amount(field), true
}

func (r *rowReader) count(field string) int {
	v, _ := r.raw.Get(field)
	n, err := utils.ParseCount(v)
	if err != nil {
		r.numberFailure(field, v, err)
		return 0
	}
	return n
}

// percent accepts "45%" or "45"; a blank cell is 0.
func (r *rowReader) percent(field string) decimal.Decimal {
	v, _ := r.raw.Get(field)
	if v == "" {
		return decimal.Zero
	}
	d, err := utils.ParsePercent(v)
	if err != nil {
		r.numberFailure(field, v, err)
		return decimal.Zero
	}
	return d.Round(2)
}

func (r *rowReader) date(field string) time.Time {
	v, _ := r.raw.Get(field)
	if v == "" {
		r.fail(field, "", "is required")
		return time.Time{}
	}
	d, err := sheets.ParseDate(v)
	if err != nil {
		r.fail(field, v, "is not a date")
		return time.Time{}
	}
	return d
}

func (r *rowReader) numberFailure(field, value string, err error) {
	if errors.Is(err, utils.ErrBlankValue) {
		r.fail(field, "", "is required")
		return
	}
	r.fail(field, value, "is not a number")
}

// totalOrSum keeps a supplied total, otherwise subtotal + iva.
func (r *rowReader) totalOrSum(subtotal, iva decimal.Decimal) decimal.Decimal {
	if total, ok := r.optionalAmount("total"); ok {
		return total
	}
	return subtotal.Add(iva).Round(2)
}

func normalizeHour(r *rowReader) SalesRecord {
	return SalesByHour{
		Hora:  r.key("hora"),
		Monto: r.amount("monto"),
	}
}

func normalizeDish(r *rowReader) SalesRecord {
	return SalesByDish{
		ClavePlatillo:  r.key("clave_platillo"),
		NombrePlatillo: r.text("nombre_platillo"),
		Grupo:          r.text("grupo"),
		Cantidad:       r.count("cantidad"),
		Subtotal:       r.amount("subtotal"),
		Porcentaje:     r.percent("porcentaje"),
	}
}

func normalizeGroup(r *rowReader) SalesRecord {
	return SalesByGroup{
		Grupo:    r.key("grupo"),
		Subtotal: r.amount("subtotal"),
	}
}

func normalizeGroupType(r *rowReader) SalesRecord {
	rec := SalesByGroupType{
		Grupo:      r.key("grupo"),
		Cantidad:   r.count("cantidad"),
		Subtotal:   r.amount("subtotal"),
		Iva:        r.amount("iva"),
		Porcentaje: r.percent("porcentaje"),
	}
	rec.Total = r.totalOrSum(rec.Subtotal, rec.Iva)
	return rec
}

func normalizePaymentType(r *rowReader) SalesRecord {
	return SalesByPaymentType{
		TipoPago:   r.key("tipo_pago"),
		Total:      r.amount("total"),
		Porcentaje: r.percent("porcentaje"),
	}
}

func normalizeUser(r *rowReader) SalesRecord {
	rec := SalesByUser{
		Usuario:            r.key("usuario"),
		Subtotal:           r.amount("subtotal"),
		Iva:                r.amount("iva"),
		NumCuentas:         r.count("num_cuentas"),
		TicketPromedio:     r.amount("ticket_promedio"),
		NumPersonas:        r.count("num_personas"),
		PromedioPorPersona: r.amount("promedio_por_persona"),
		Porcentaje:         r.percent("porcentaje"),
	}
	rec.Total = r.totalOrSum(rec.Subtotal, rec.Iva)
	return rec
}

func normalizeCashier(r *rowReader) SalesRecord {
	rec := SalesByCashier{
		Cajero:                r.key("cajero"),
		Subtotal:              r.amount("subtotal"),
		Iva:                   r.amount("iva"),
		CantidadTransacciones: r.count("cantidad_transacciones"),
		Porcentaje:            r.percent("porcentaje"),
	}
	rec.Total = r.totalOrSum(rec.Subtotal, rec.Iva)
	return rec
}

func normalizeModifier(r *rowReader) SalesRecord {
	return SalesByModifier{
		Grupo:          r.key("grupo"),
		ClavePlatillo:  r.key("clave_platillo"),
		Tamano:         r.text("tamano"),
		NombrePlatillo: r.text("nombre_platillo"),
		Cantidad:       r.count("cantidad"),
		Subtotal:       r.amount("subtotal"),
	}
}

// normalizeLine derives total = cantidad * precio_unitario when no total is supplied.
func normalizeLine(r *rowReader) SalesRecord {
	rec := SalesLine{
		Fecha:          r.date("fecha"),
		Producto:       r.key("producto"),
		Cantidad:       r.amount("cantidad"),
		PrecioUnitario: r.amount("precio_unitario"),
	}
	if total, ok := r.optionalAmount("total"); ok {
		rec.Total = total
	} else {
		rec.Total = rec.Cantidad.Mul(rec.PrecioUnitario).Round(2)
	}
	if r.err == nil && (rec.Fecha.Year() != r.period.Anio || int(rec.Fecha.Month()) != r.period.Mes) {
		r.fail("fecha", rec.Fecha.Format(sheets.IsoDate), fmt.Sprintf("is outside %04d-%02d", r.period.Anio, r.period.Mes))
	}
	return rec
}

func withBase(rec SalesRecord, base SalesBase) SalesRecord {
	switch v := rec.(type) {
	case SalesByHour:
		v.SalesBase = base
		return v
	case SalesByDish:
		v.SalesBase = base
		return v
	case SalesByGroup:
		v.SalesBase = base
		return v
	case SalesByGroupType:
		v.SalesBase = base
		return v
	case SalesByPaymentType:
		v.SalesBase = base
		return v
	case SalesByUser:
		v.SalesBase = base
		return v
	case SalesByCashier:
		v.SalesBase = base
		return v
	case SalesByModifier:
		v.SalesBase = base
		return v
	case SalesLine:
		v.SalesBase = base
		return v
	}
	return rec
}

// DedupeKey identifies the unique row a record lands on within its period.
func DedupeKey(rec SalesRecord) string {
	parts := make([]string, 0, 3)
	for _, v := range rec.KeyValues() {
		switch t := v.(type) {
		case time.Time:
			parts = append(parts, t.Format(sheets.IsoDate))
		default:
			parts = append(parts, fmt.Sprint(t))
		}
	}
	return strings.Join(parts, "\x1f")
}

// DedupeRows keeps the last occurrence of every key. A single INSERT ... ON CONFLICT
// statement cannot touch the same row twice, so earlier duplicates are returned as warnings.
func DedupeRows(dim Dimension, rows []NormalizedRow) ([]NormalizedRow, []*ValidationError) {
	last := make(map[string]int, len(rows))
	for i, row := range rows {
		last[DedupeKey(row.Record)] = i
	}
	if len(last) == len(rows) {
		return rows, nil
	}

	kept := make([]NormalizedRow, 0, len(last))
	var dropped []*ValidationError
	for i, row := range rows {
		key := DedupeKey(row.Record)
		winner := last[key]
		if winner == i {
			kept = append(kept, row)
			continue
		}
		dropped = append(dropped, &ValidationError{
			Dimension: dim,
			Row:       row.Row,
			Value:     strings.ReplaceAll(key, "\x1f", " / "),
			Reason:    fmt.Sprintf("duplicate key, superseded by row %d", rows[winner].Row),
		})
	}
	return kept, dropped
}
