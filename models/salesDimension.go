package models

import (
	"time"

	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/sheets"
	"github.com/shopspring/decimal"
)

// Dimension is one aggregation axis of the sales report; its value is the table name.
type Dimension string

const (
	DimensionHour        Dimension = "ventas_por_hora"
	DimensionDish        Dimension = "ventas_por_platillo"
	DimensionGroup       Dimension = "ventas_por_grupo"
	DimensionGroupType   Dimension = "ventas_por_tipo_grupo"
	DimensionPaymentType Dimension = "ventas_por_tipo_pago"
	DimensionUser        Dimension = "ventas_por_usuario"
	DimensionCashier     Dimension = "ventas_por_cajero"
	DimensionModifier    Dimension = "ventas_por_modificador"
	// DimensionLine holds daily per-product lines from the plain sales export.
	DimensionLine Dimension = "ventas"
)

// periodColumns prefix every unique key.
var periodColumns = []string{"sucursal", "anio", "mes", "semana"}

// SalesBase carries the period key and audit columns shared by every aggregate table.
type SalesBase struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Sucursal  string    `gorm:"size:50;not null" json:"sucursal"`
	Anio      int       `gorm:"not null" json:"anio"`
	Mes       int       `gorm:"not null" json:"mes"`
	Semana    int       `gorm:"not null" json:"semana"`
	CreatedBy string    `gorm:"size:100;not null" json:"created_by"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// SalesRecord is a normalized row ready for the upsert engine.
type SalesRecord interface {
	Dimension() Dimension
	// KeyValues follow DimensionSpec.Keys.
	KeyValues() []interface{}
	// MeasureValues follow DimensionSpec.Measures.
	MeasureValues() []interface{}
}

type SalesByHour struct {
	SalesBase
	Hora  string          `gorm:"size:20;not null" json:"hora"`
	Monto decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"monto"`
}

func (SalesByHour) TableName() string { return qualified(DimensionHour) }
func (SalesByHour) Dimension() Dimension { return DimensionHour }
func (r SalesByHour) KeyValues() []interface{} { return []interface{}{r.Hora} }
func (r SalesByHour) MeasureValues() []interface{} {
	return []interface{}{r.Monto}
}

type SalesByDish struct {
	SalesBase
	ClavePlatillo  string          `gorm:"size:50;not null" json:"clave_platillo"`
	NombrePlatillo string          `gorm:"size:200" json:"nombre_platillo"`
	Grupo          string          `gorm:"size:100" json:"grupo"`
	Cantidad       int             `gorm:"type:integer;not null;default:0" json:"cantidad"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	Porcentaje     decimal.Decimal `gorm:"type:numeric(7,2);not null;default:0" json:"porcentaje"`
}

func (SalesByDish) TableName() string { return qualified(DimensionDish) }
func (SalesByDish) Dimension() Dimension { return DimensionDish }
func (r SalesByDish) KeyValues() []interface{} { return []interface{}{r.ClavePlatillo} }
func (r SalesByDish) MeasureValues() []interface{} {
	return []interface{}{r.NombrePlatillo, r.Grupo, r.Cantidad, r.Subtotal, r.Porcentaje}
}

type SalesByGroup struct {
	SalesBase
	Grupo    string          `gorm:"size:100;not null" json:"grupo"`
	Subtotal decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
}

func (SalesByGroup) TableName() string { return qualified(DimensionGroup) }
func (SalesByGroup) Dimension() Dimension { return DimensionGroup }
func (r SalesByGroup) KeyValues() []interface{} { return []interface{}{r.Grupo} }
func (r SalesByGroup) MeasureValues() []interface{} {
	return []interface{}{r.Subtotal}
}

type SalesByGroupType struct {
	SalesBase
	Grupo      string          `gorm:"size:100;not null" json:"grupo"`
	Cantidad   int             `gorm:"type:integer;not null;default:0" json:"cantidad"`
	Subtotal   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	Iva        decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"iva"`
	Total      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	Porcentaje decimal.Decimal `gorm:"type:numeric(7,2);not null;default:0" json:"porcentaje"`
}

func (SalesByGroupType) TableName() string { return qualified(DimensionGroupType) }
func (SalesByGroupType) Dimension() Dimension { return DimensionGroupType }
func (r SalesByGroupType) KeyValues() []interface{} { return []interface{}{r.Grupo} }
func (r SalesByGroupType) MeasureValues() []interface{} {
	return []interface{}{r.Cantidad, r.Subtotal, r.Iva, r.Total, r.Porcentaje}
}

type SalesByPaymentType struct {
	SalesBase
	TipoPago   string          `gorm:"size:100;not null" json:"tipo_pago"`
	Total      decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	Porcentaje decimal.Decimal `gorm:"type:numeric(7,2);not null;default:0" json:"porcentaje"`
}

func (SalesByPaymentType) TableName() string { return qualified(DimensionPaymentType) }
func (SalesByPaymentType) Dimension() Dimension { return DimensionPaymentType }
func (r SalesByPaymentType) KeyValues() []interface{} { return []interface{}{r.TipoPago} }
func (r SalesByPaymentType) MeasureValues() []interface{} {
	return []interface{}{r.Total, r.Porcentaje}
}

type SalesByUser struct {
	SalesBase
	Usuario            string          `gorm:"size:100;not null" json:"usuario"`
	Subtotal           decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	Iva                decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"iva"`
	Total              decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	NumCuentas         int             `gorm:"type:integer;not null;default:0" json:"num_cuentas"`
	TicketPromedio     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"ticket_promedio"`
	NumPersonas        int             `gorm:"type:integer;not null;default:0" json:"num_personas"`
	PromedioPorPersona decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"promedio_por_persona"`
	Porcentaje         decimal.Decimal `gorm:"type:numeric(7,2);not null;default:0" json:"porcentaje"`
}

func (SalesByUser) TableName() string { return qualified(DimensionUser) }
func (SalesByUser) Dimension() Dimension { return DimensionUser }
func (r SalesByUser) KeyValues() []interface{} { return []interface{}{r.Usuario} }
func (r SalesByUser) MeasureValues() []interface{} {
	return []interface{}{r.Subtotal, r.Iva, r.Total, r.NumCuentas, r.TicketPromedio, r.NumPersonas, r.PromedioPorPersona, r.Porcentaje}
}

type SalesByCashier struct {
	SalesBase
	Cajero                string          `gorm:"size:100;not null" json:"cajero"`
	Subtotal              decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
	Iva                   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"iva"`
	Total                 decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
	CantidadTransacciones int             `gorm:"type:integer;not null;default:0" json:"cantidad_transacciones"`
	Porcentaje            decimal.Decimal `gorm:"type:numeric(7,2);not null;default:0" json:"porcentaje"`
}

func (SalesByCashier) TableName() string { return qualified(DimensionCashier) }
func (SalesByCashier) Dimension() Dimension { return DimensionCashier }
func (r SalesByCashier) KeyValues() []interface{} { return []interface{}{r.Cajero} }
func (r SalesByCashier) MeasureValues() []interface{} {
	return []interface{}{r.Subtotal, r.Iva, r.Total, r.CantidadTransacciones, r.Porcentaje}
}

// SalesByModifier keys on size as well; a dish without size variants stores tamano as "".
type SalesByModifier struct {
	SalesBase
	Grupo          string          `gorm:"size:100;not null" json:"grupo"`
	ClavePlatillo  string          `gorm:"size:50;not null" json:"clave_platillo"`
	Tamano         string          `gorm:"size:50;not null;default:''" json:"tamano"`
	NombrePlatillo string          `gorm:"size:200" json:"nombre_platillo"`
	Cantidad       int             `gorm:"type:integer;not null;default:0" json:"cantidad"`
	Subtotal       decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subtotal"`
}

func (SalesByModifier) TableName() string { return qualified(DimensionModifier) }
func (SalesByModifier) Dimension() Dimension { return DimensionModifier }
func (r SalesByModifier) KeyValues() []interface{} {
	return []interface{}{r.Grupo, r.ClavePlatillo, r.Tamano}
}
func (r SalesByModifier) MeasureValues() []interface{} {
	return []interface{}{r.NombrePlatillo, r.Cantidad, r.Subtotal}
}

type SalesLine struct {
	SalesBase
	Fecha          time.Time       `gorm:"type:date;not null" json:"fecha"`
	Producto       string          `gorm:"size:200;not null" json:"producto"`
	Cantidad       decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"cantidad"`
	PrecioUnitario decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"precio_unitario"`
	Total          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"total"`
}

func (SalesLine) TableName() string { return qualified(DimensionLine) }
func (SalesLine) Dimension() Dimension { return DimensionLine }
func (r SalesLine) KeyValues() []interface{} { return []interface{}{r.Fecha, r.Producto} }
func (r SalesLine) MeasureValues() []interface{} {
	return []interface{}{r.Cantidad, r.PrecioUnitario, r.Total}
}

func qualified(dim Dimension) string {
	return config.SalesSchema() + "." + string(dim)
}

// DimensionSpec is the declarative description of one dimension: the sheet section the
// parser looks for, the table the upsert engine writes, and the row normalizer.
type DimensionSpec struct {
	Dimension Dimension     `json:"dimension"`
	Layout    sheets.Layout `json:"-"`
	Headers   []string      `json:"headers"`
	Keys      []string      `json:"keys"`
	Measures  []string      `json:"measures"`

	model     func() interface{}
	normalize func(r *rowReader) SalesRecord
}

func (s DimensionSpec) Table() string {
	return qualified(s.Dimension)
}

func text(field string, headers ...string) sheets.Column {
	return sheets.Column{Field: field, Headers: headers, Kind: sheets.KindText}
}

func number(field string, headers ...string) sheets.Column {
	return sheets.Column{Field: field, Headers: headers, Kind: sheets.KindNumber}
}

func optional(c sheets.Column) sheets.Column {
	c.Optional = true
	return c
}

var (
	colSubtotal   = number("subtotal", "Subtotal", "Sub total")
	colIva        = number("iva", "IVA", "Impuesto", "Impuestos")
	colTotal      = optional(number("total", "Total", "Importe total"))
	colPorcentaje = number("porcentaje", "%", "Porcentaje", "Pct")
	colGrupo      = text("grupo", "Grupo")
	colCantidad   = number("cantidad", "Cantidad", "Cant")
	colClave      = text("clave_platillo", "Clave", "Clave platillo", "Codigo")
	colNombre     = text("nombre_platillo", "Nombre", "Platillo", "Nombre platillo", "Descripcion")
)

var dimensionSpecs = []DimensionSpec{
	{
		Dimension: DimensionHour,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por hora", "Por hora", "Hora"},
			Columns: []sheets.Column{
				text("hora", "Hora", "Horario"),
				number("monto", "Monto", "Venta", "Ventas", "Importe"),
			},
		},
		Keys:      []string{"hora"},
		Measures:  []string{"monto"},
		model:     func() interface{} { return &SalesByHour{} },
		normalize: normalizeHour,
	},
	{
		Dimension: DimensionDish,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por platillo", "Platillos", "Por platillo"},
			Columns:    []sheets.Column{colClave, colNombre, colGrupo, colCantidad, colSubtotal, colPorcentaje},
		},
		Keys:      []string{"clave_platillo"},
		Measures:  []string{"nombre_platillo", "grupo", "cantidad", "subtotal", "porcentaje"},
		model:     func() interface{} { return &SalesByDish{} },
		normalize: normalizeDish,
	},
	{
		Dimension: DimensionGroup,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por grupo", "Grupos", "Por grupo"},
			Columns:    []sheets.Column{colGrupo, colSubtotal},
		},
		Keys:      []string{"grupo"},
		Measures:  []string{"subtotal"},
		model:     func() interface{} { return &SalesByGroup{} },
		normalize: normalizeGroup,
	},
	{
		Dimension: DimensionGroupType,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por tipo de grupo", "Tipo de grupo", "Por tipo de grupo"},
			Columns:    []sheets.Column{colGrupo, colCantidad, colSubtotal, colIva, colTotal, colPorcentaje},
		},
		Keys:      []string{"grupo"},
		Measures:  []string{"cantidad", "subtotal", "iva", "total", "porcentaje"},
		model:     func() interface{} { return &SalesByGroupType{} },
		normalize: normalizeGroupType,
	},
	{
		Dimension: DimensionPaymentType,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por tipo de pago", "Formas de pago", "Tipo de pago"},
			Columns: []sheets.Column{
				text("tipo_pago", "Tipo de pago", "Tipo pago", "Forma de pago", "Forma pago"),
				number("total", "Total", "Importe", "Monto"),
				colPorcentaje,
			},
		},
		Keys:      []string{"tipo_pago"},
		Measures:  []string{"total", "porcentaje"},
		model:     func() interface{} { return &SalesByPaymentType{} },
		normalize: normalizePaymentType,
	},
	{
		Dimension: DimensionUser,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por usuario", "Usuarios", "Meseros"},
			Columns: []sheets.Column{
				text("usuario", "Usuario", "Mesero"),
				colSubtotal,
				colIva,
				colTotal,
				number("num_cuentas", "Cuentas", "Num cuentas", "No cuentas", "Numero de cuentas"),
				number("ticket_promedio", "Ticket promedio", "Promedio por cuenta"),
				number("num_personas", "Personas", "Num personas", "No personas", "Numero de personas"),
				number("promedio_por_persona", "Promedio por persona", "Prom persona", "Promedio persona"),
				colPorcentaje,
			},
		},
		Keys:      []string{"usuario"},
		Measures:  []string{"subtotal", "iva", "total", "num_cuentas", "ticket_promedio", "num_personas", "promedio_por_persona", "porcentaje"},
		model:     func() interface{} { return &SalesByUser{} },
		normalize: normalizeUser,
	},
	{
		Dimension: DimensionCashier,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por cajero", "Cajeros"},
			Columns: []sheets.Column{
				text("cajero", "Cajero"),
				colSubtotal,
				colIva,
				colTotal,
				number("cantidad_transacciones", "Transacciones", "Cantidad transacciones", "Num transacciones", "No transacciones"),
				colPorcentaje,
			},
		},
		Keys:      []string{"cajero"},
		Measures:  []string{"subtotal", "iva", "total", "cantidad_transacciones", "porcentaje"},
		model:     func() interface{} { return &SalesByCashier{} },
		normalize: normalizeCashier,
	},
	{
		Dimension: DimensionModifier,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas por modificador", "Modificadores"},
			Columns: []sheets.Column{
				colGrupo,
				colClave,
				optional(colNombre),
				optional(text("tamano", "Tamaño", "Tamano", "Talla", "Size")),
				colCantidad,
				colSubtotal,
			},
		},
		Keys:      []string{"grupo", "clave_platillo", "tamano"},
		Measures:  []string{"nombre_platillo", "cantidad", "subtotal"},
		model:     func() interface{} { return &SalesByModifier{} },
		normalize: normalizeModifier,
	},
	{
		Dimension: DimensionLine,
		Layout: sheets.Layout{
			SheetNames: []string{"Ventas", "Detalle de ventas"},
			Columns: []sheets.Column{
				{Field: "fecha", Headers: []string{"Fecha"}, Kind: sheets.KindDate},
				text("producto", "Producto", "Articulo"),
				colCantidad,
				number("precio_unitario", "Precio unitario", "Precio", "P unitario"),
				colTotal,
			},
		},
		Keys:      []string{"fecha", "producto"},
		Measures:  []string{"cantidad", "precio_unitario", "total"},
		model:     func() interface{} { return &SalesLine{} },
		normalize: normalizeLine,
	},
}

func init() {
	for i := range dimensionSpecs {
		spec := &dimensionSpecs[i]
		spec.Layout.Name = string(spec.Dimension)
		spec.Headers = spec.Layout.ExpectedHeaders()
	}
}

// Dimensions lists every dimension in processing order.
func Dimensions() []DimensionSpec {
	out := make([]DimensionSpec, len(dimensionSpecs))
	copy(out, dimensionSpecs)
	return out
}

func SpecFor(dim Dimension) (DimensionSpec, bool) {
	for _, s := range dimensionSpecs {
		if s.Dimension == dim {
			return s, true
		}
	}
	return DimensionSpec{}, false
}

// NewSalesParser returns a row parser that knows every dimension layout.
func NewSalesParser() *sheets.Parser {
	layouts := make([]sheets.Layout, 0, len(dimensionSpecs))
	for _, s := range dimensionSpecs {
		layouts = append(layouts, s.Layout)
	}
	return sheets.NewParser(layouts...)
}
