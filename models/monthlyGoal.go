package models

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	GoalTypeSales = "ventas"

	GoalStatusMet        = "cumplido"
	GoalStatusInProgress = "en_progreso"
	GoalStatusNeedAction = "requiere_accion"
)

var (
	goalMetThreshold        = decimal.NewFromInt(100)
	goalInProgressThreshold = decimal.NewFromInt(50)
)

// MonthlyGoal is the sales target of one branch for one month.
type MonthlyGoal struct {
	ID          int             `gorm:"primary_key" json:"id"`
	Sucursal    string          `gorm:"size:50;not null;uniqueIndex:uq_metas_mensuales_periodo" json:"sucursal"`
	Anio        int             `gorm:"not null;uniqueIndex:uq_metas_mensuales_periodo" json:"anio"`
	Mes         int             `gorm:"not null;uniqueIndex:uq_metas_mensuales_periodo" json:"mes"`
	TipoMeta    string          `gorm:"size:50;not null;default:'ventas';uniqueIndex:uq_metas_mensuales_periodo" json:"tipo_meta"`
	MetaMonto   decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"meta_monto"`
	Activa      *bool           `gorm:"not null;default:true" json:"activa"`
	Comentarios string          `gorm:"type:text" json:"comentarios"`
	UsuarioId   int             `json:"usuario_id"`
	CreatedBy   string          `gorm:"size:100" json:"created_by"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (MonthlyGoal) TableName() string {
	return config.SalesSchema() + ".metas_mensuales"
}

type NewMonthlyGoal struct {
	Sucursal    string          `json:"sucursal" binding:"required"`
	Anio        int             `json:"anio" binding:"required"`
	Mes         int             `json:"mes" binding:"required,min=1,max=12"`
	TipoMeta    string          `json:"tipo_meta"`
	MetaMonto   decimal.Decimal `json:"meta_monto"`
	Comentarios string          `json:"comentarios" binding:"max=1000"`
}

type GoalFilter struct {
	Sucursal string `form:"sucursal"`
	Anio     int    `form:"anio"`
	Mes      int    `form:"mes" binding:"omitempty,min=1,max=12"`
}

// GoalPeriodKey groups hourly sales of every week of a month.
type GoalPeriodKey struct {
	Sucursal string
	Anio     int
	Mes      int
}

type GoalProgress struct {
	*MonthlyGoal
	Actual     decimal.Decimal `json:"actual"`
	Diferencia decimal.Decimal `json:"diferencia"` // actual minus goal; negative while short
	Porcentaje decimal.Decimal `json:"porcentaje"`
	Estado     string          `json:"estado"`
}

func (g *MonthlyGoal) PeriodKey() GoalPeriodKey {
	return GoalPeriodKey{Sucursal: g.Sucursal, Anio: g.Anio, Mes: g.Mes}
}

func validateGoalInput(cfg config.PeriodConfig, input *NewMonthlyGoal) (string, error) {
	branch, err := ResolveBranch(cfg, input.Sucursal)
	if err != nil {
		return "", err
	}
	if err := ValidateYear(cfg, input.Anio); err != nil {
		return "", err
	}
	if err := ValidateMonth(input.Mes); err != nil {
		return "", err
	}
	if !input.MetaMonto.IsPositive() {
		return "", &ConfigurationError{Field: "meta_monto", Value: input.MetaMonto.String(), Reason: "must be greater than 0"}
	}
	return branch, nil
}

// UpsertMonthlyGoal creates the goal or overwrites the one already set for the same
// branch, month and type. An overwritten goal is active again.
func UpsertMonthlyGoal(ctx context.Context, db *gorm.DB, cfg config.PeriodConfig, input *NewMonthlyGoal) (*MonthlyGoal, error) {
	branch, err := validateGoalInput(cfg, input)
	if err != nil {
		return nil, err
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	username, _ := utils.GetUsernameFromContext(ctx)
	tipo := strings.TrimSpace(strings.ToLower(input.TipoMeta))
	if tipo == "" {
		tipo = GoalTypeSales
	}

	goal := MonthlyGoal{
		Sucursal:    branch,
		Anio:        input.Anio,
		Mes:         input.Mes,
		TipoMeta:    tipo,
		MetaMonto:   input.MetaMonto.Round(2),
		Activa:      utils.NewTrue(),
		Comentarios: strings.TrimSpace(input.Comentarios),
		UsuarioId:   userId,
		CreatedBy:   username,
	}

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "sucursal"}, {Name: "anio"}, {Name: "mes"}, {Name: "tipo_meta"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"meta_monto":  goal.MetaMonto,
			"activa":      true,
			"comentarios": goal.Comentarios,
			"usuario_id":  goal.UsuarioId,
			"created_by":  goal.CreatedBy,
			"updated_at":  gorm.Expr("now()"),
		}),
	}).Create(&goal).Error
	if err != nil {
		return nil, newPersistenceError("metas_mensuales", err)
	}

	// the returned id is the existing row's when the insert turned into an update
	var saved MonthlyGoal
	if err := db.WithContext(ctx).
		Where("sucursal = ? AND anio = ? AND mes = ? AND tipo_meta = ?", branch, goal.Anio, goal.Mes, tipo).
		Take(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}

// ListMonthlyGoals returns the active goals matching filter; zero fields do not filter.
func ListMonthlyGoals(ctx context.Context, db *gorm.DB, filter GoalFilter) ([]*MonthlyGoal, error) {
	dbCtx := db.WithContext(ctx).Where("activa = ?", true)
	if filter.Sucursal != "" {
		dbCtx = dbCtx.Where("LOWER(sucursal) = ?", strings.ToLower(strings.TrimSpace(filter.Sucursal)))
	}
	if filter.Anio > 0 {
		dbCtx = dbCtx.Where("anio = ?", filter.Anio)
	}
	if filter.Mes > 0 {
		dbCtx = dbCtx.Where("mes = ?", filter.Mes)
	}

	var goals []*MonthlyGoal
	if err := dbCtx.Order("anio DESC, mes DESC, sucursal").Find(&goals).Error; err != nil {
		return nil, err
	}
	return goals, nil
}

// DeactivateMonthlyGoal soft deletes a goal.
func DeactivateMonthlyGoal(ctx context.Context, db *gorm.DB, id int) error {
	result := db.WithContext(ctx).Model(&MonthlyGoal{}).
		Where("id = ? AND activa = ?", id, true).
		Updates(map[string]interface{}{"activa": false, "updated_at": gorm.Expr("now()")})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

type goalActualRow struct {
	Sucursal string
	Anio     int
	Mes      int
	Actual   decimal.Decimal
}

// SalesActuals sums ventas_por_hora.monto over every week of each requested month.
// Months without uploaded sales are reported as zero.
func SalesActuals(ctx context.Context, db *gorm.DB, keys []GoalPeriodKey) (map[GoalPeriodKey]decimal.Decimal, error) {
	out := make(map[GoalPeriodKey]decimal.Decimal, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	tuples := make([][]interface{}, 0, len(keys))
	for _, k := range keys {
		out[k] = decimal.Zero
		tuples = append(tuples, []interface{}{k.Sucursal, k.Anio, k.Mes})
	}

	var rows []goalActualRow
	query := "SELECT sucursal, anio, mes, COALESCE(SUM(monto), 0) AS actual FROM " +
		quoteTable(config.SalesSchema(), string(DimensionHour)) +
		" WHERE (sucursal, anio, mes) IN ? GROUP BY sucursal, anio, mes"
	if err := db.WithContext(ctx).Raw(query, tuples).Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		out[GoalPeriodKey{Sucursal: r.Sucursal, Anio: r.Anio, Mes: r.Mes}] = r.Actual
	}
	return out, nil
}

// ComputeGoalProgress rates actual against the goal amount.
func ComputeGoalProgress(goal *MonthlyGoal, actual decimal.Decimal) GoalProgress {
	progress := GoalProgress{
		MonthlyGoal: goal,
		Actual:      actual.Round(2),
		Diferencia:  actual.Sub(goal.MetaMonto).Round(2),
		Porcentaje:  decimal.Zero,
	}
	if goal.MetaMonto.IsPositive() {
		progress.Porcentaje = actual.Div(goal.MetaMonto).Mul(decimal.NewFromInt(100)).Round(2)
	}
	switch {
	case progress.Porcentaje.GreaterThanOrEqual(goalMetThreshold):
		progress.Estado = GoalStatusMet
	case progress.Porcentaje.GreaterThanOrEqual(goalInProgressThreshold):
		progress.Estado = GoalStatusInProgress
	default:
		progress.Estado = GoalStatusNeedAction
	}
	return progress
}

func ParseGoalId(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, utils.ErrorRecordNotFound
	}
	return id, nil
}
