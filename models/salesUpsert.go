package models

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	// rows per INSERT statement; keeps bind parameters well under postgres' 65535 limit
	upsertChunkSize = 500
	upsertMaxTries  = 3
)

// UpsertCounts reports what happened to each row of a batch.
// Unchanged rows matched an existing key whose measures were identical.
type UpsertCounts struct {
	Inserted  int `json:"inserted"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
}

func (c *UpsertCounts) add(o UpsertCounts) {
	c.Inserted += o.Inserted
	c.Updated += o.Updated
	c.Unchanged += o.Unchanged
}

type upsertOutcome struct {
	Inserted bool
}

// UpsertSalesBatch writes records of one dimension and period in a single transaction.
// Every record must already be unique on its dimension key (see DedupeRows).
func UpsertSalesBatch(ctx context.Context, db *gorm.DB, dim Dimension, period Period, createdBy string, records []SalesRecord) (UpsertCounts, error) {
	spec, ok := SpecFor(dim)
	if !ok {
		return UpsertCounts{}, fmt.Errorf("unknown dimension %q", dim)
	}
	if len(records) == 0 {
		return UpsertCounts{}, nil
	}

	var (
		counts UpsertCounts
		err    error
	)
	for attempt := 1; attempt <= upsertMaxTries; attempt++ {
		counts = UpsertCounts{}
		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			for start := 0; start < len(records); start += upsertChunkSize {
				end := start + upsertChunkSize
				if end > len(records) {
					end = len(records)
				}
				chunk, err := upsertChunk(tx, spec, period, createdBy, records[start:end])
				if err != nil {
					return err
				}
				counts.add(chunk)
			}
			return nil
		})
		if err == nil {
			return counts, nil
		}
		perr := newPersistenceError(dim, err)
		if !perr.Retryable || attempt == upsertMaxTries || ctx.Err() != nil {
			return UpsertCounts{}, perr
		}
		uploadId, _ := utils.GetUploadIdFromContext(ctx)
		config.GetLogger().WithFields(logrus.Fields{
			"field":     "UpsertSalesBatch",
			"upload_id": uploadId,
			"dimension": dim,
			"attempt":   attempt,
			"sqlstate":  perr.Code,
		}).Warn("retrying batch")
		if waitRetry(ctx, time.Duration(attempt*100)*time.Millisecond) != nil {
			return UpsertCounts{}, perr
		}
	}
	return UpsertCounts{}, newPersistenceError(dim, err)
}

// waitRetry sleeps for d unless ctx is done first.
func waitRetry(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func upsertChunk(tx *gorm.DB, spec DimensionSpec, period Period, createdBy string, records []SalesRecord) (UpsertCounts, error) {
	query := buildUpsertSQL(spec, len(records))

	perRow := len(periodColumns) + len(spec.Keys) + len(spec.Measures) + 1
	args := make([]interface{}, 0, len(records)*perRow)
	for _, rec := range records {
		if rec.Dimension() != spec.Dimension {
			return UpsertCounts{}, fmt.Errorf("record of %s passed to %s batch", rec.Dimension(), spec.Dimension)
		}
		args = append(args, period.Sucursal, period.Anio, period.Mes, period.Semana)
		args = append(args, rec.KeyValues()...)
		args = append(args, rec.MeasureValues()...)
		args = append(args, createdBy)
	}

	var outcomes []upsertOutcome
	if err := tx.Raw(query, args...).Scan(&outcomes).Error; err != nil {
		return UpsertCounts{}, err
	}

	var counts UpsertCounts
	for _, o := range outcomes {
		if o.Inserted {
			counts.Inserted++
		} else {
			counts.Updated++
		}
	}
	// rows filtered by the DO UPDATE ... WHERE clause are not returned
	counts.Unchanged = len(records) - len(outcomes)
	return counts, nil
}

// buildUpsertSQL renders, for ventas_por_tipo_pago:
//
//	INSERT INTO "LealSilver"."ventas_por_tipo_pago" AS t (sucursal, anio, mes, semana, tipo_pago, total, porcentaje, created_by, created_at, updated_at)
//	VALUES (?, ?, ?, ?, ?, ?, ?, ?, now(), now()), ...
//	ON CONFLICT (sucursal, anio, mes, semana, tipo_pago) DO UPDATE SET
//	  total = EXCLUDED.total, porcentaje = EXCLUDED.porcentaje, created_by = EXCLUDED.created_by, updated_at = now()
//	WHERE (t.total, t.porcentaje) IS DISTINCT FROM (EXCLUDED.total, EXCLUDED.porcentaje)
//	RETURNING (xmax = 0) AS inserted
func buildUpsertSQL(spec DimensionSpec, rows int) string {
	conflict := append(append([]string{}, periodColumns...), spec.Keys...)
	columns := append(append(append([]string{}, conflict...), spec.Measures...), "created_by", "created_at", "updated_at")

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)-2), ", ") + ", now(), now())"
	values := make([]string, rows)
	for i := range values {
		values[i] = placeholder
	}

	sets := make([]string, 0, len(spec.Measures)+2)
	current := make([]string, 0, len(spec.Measures))
	excluded := make([]string, 0, len(spec.Measures))
	for _, m := range spec.Measures {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", m, m))
		current = append(current, "t."+m)
		excluded = append(excluded, "EXCLUDED."+m)
	}
	sets = append(sets, "created_by = EXCLUDED.created_by", "updated_at = now()")

	return fmt.Sprintf(`INSERT INTO %s AS t (%s)
VALUES %s
ON CONFLICT (%s) DO UPDATE SET %s
WHERE (%s) IS DISTINCT FROM (%s)
RETURNING (xmax = 0) AS inserted`,
		quoteTable(config.SalesSchema(), string(spec.Dimension)),
		strings.Join(columns, ", "),
		strings.Join(values, ", "),
		strings.Join(conflict, ", "),
		strings.Join(sets, ", "),
		strings.Join(current, ", "),
		strings.Join(excluded, ", "),
	)
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func quoteTable(schema, table string) string {
	return quoteIdent(schema) + "." + quoteIdent(table)
}

// GormPersister writes batches through the shared connection pool.
type GormPersister struct {
	DB *gorm.DB
}

func (p GormPersister) UpsertBatch(ctx context.Context, dim Dimension, period Period, createdBy string, records []SalesRecord) (UpsertCounts, error) {
	return UpsertSalesBatch(ctx, p.DB, dim, period, createdBy, records)
}
