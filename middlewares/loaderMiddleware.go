package middlewares

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/graph-gophers/dataloader/v7"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ctxKey string

const (
	loadersKey = ctxKey("dataloaders")
)

// Loaders wrap your data loaders to inject via middleware
type Loaders struct {
	SalesActualsLoader *dataloader.Loader[models.GoalPeriodKey, decimal.Decimal]
}

// NewLoaders instantiates data loaders for the middleware
func NewLoaders(conn *gorm.DB) *Loaders {
	salesActualsReader := &salesActualsReader{db: conn}

	return &Loaders{
		SalesActualsLoader: dataloader.NewBatchedLoader(salesActualsReader.getSalesActuals, dataloader.WithWait[models.GoalPeriodKey, decimal.Decimal](time.Millisecond)),
	}
}

func LoaderMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		loader := NewLoaders(config.GetDB())
		ctx := context.WithValue(c.Request.Context(), loadersKey, loader)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func For(ctx context.Context) *Loaders {
	return ctx.Value(loadersKey).(*Loaders)
}

// WithLoaders attaches loaders outside of a gin request, e.g. in tests.
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}

// handleError creates array of result with the same error repeated for as many items requested
func handleError[T any](itemsLength int, err error) []*dataloader.Result[T] {
	result := make([]*dataloader.Result[T], itemsLength)
	for i := 0; i < itemsLength; i++ {
		result[i] = &dataloader.Result[T]{Error: err}
	}
	return result
}
