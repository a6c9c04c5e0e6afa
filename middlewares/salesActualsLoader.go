package middlewares

import (
	"context"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type salesActualsReader struct {
	db *gorm.DB
}

func (r *salesActualsReader) getSalesActuals(ctx context.Context, keys []models.GoalPeriodKey) []*dataloader.Result[decimal.Decimal] {
	actuals, err := models.SalesActuals(ctx, r.db, keys)
	if err != nil {
		return handleError[decimal.Decimal](len(keys), err)
	}
	results := make([]*dataloader.Result[decimal.Decimal], 0, len(keys))
	for _, key := range keys {
		results = append(results, &dataloader.Result[decimal.Decimal]{Data: actuals[key]})
	}
	return results
}

func GetSalesActuals(ctx context.Context, keys []models.GoalPeriodKey) ([]decimal.Decimal, []error) {
	loaders := For(ctx)
	return loaders.SalesActualsLoader.LoadMany(ctx, keys)()
}

// GoalsProgress rates every goal against its month's actual sales in one query.
func GoalsProgress(ctx context.Context, goals []*models.MonthlyGoal) ([]models.GoalProgress, error) {
	keys := make([]models.GoalPeriodKey, 0, len(goals))
	for _, g := range goals {
		keys = append(keys, g.PeriodKey())
	}
	actuals, errs := GetSalesActuals(ctx, keys)
	out := make([]models.GoalProgress, 0, len(goals))
	for i, g := range goals {
		if len(errs) > i && errs[i] != nil {
			return nil, errs[i]
		}
		out = append(out, models.ComputeGoalProgress(g, actuals[i]))
	}
	return out, nil
}
