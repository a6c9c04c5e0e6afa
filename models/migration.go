package models

import (
	"fmt"
	"log"
	"strings"

	"github.com/lealcafe/ventas_backend/config"
	"gorm.io/gorm"
)

func MigrateTable() {
	if err := Migrate(config.GetDB()); err != nil {
		log.Fatal(err)
	}
}

// Migrate creates the sales schema, the tables, the period unique keys and the
// updated_at trigger. It is safe to run on every start.
func Migrate(db *gorm.DB) error {
	schema := config.SalesSchema()
	if err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + quoteIdent(schema)).Error; err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	models := []interface{}{&User{}, &MonthlyGoal{}}
	for _, spec := range dimensionSpecs {
		models = append(models, spec.model())
	}
	if err := db.AutoMigrate(models...); err != nil {
		return err
	}

	fn := quoteIdent(schema) + ".set_updated_at"
	if err := db.Exec(fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s() RETURNS trigger AS $$
BEGIN
	NEW.updated_at = now();
	RETURN NEW;
END;
$$ LANGUAGE plpgsql`, fn)).Error; err != nil {
		return fmt.Errorf("create updated_at function: %w", err)
	}

	tables := []string{"metas_mensuales"}
	for _, spec := range dimensionSpecs {
		table := string(spec.Dimension)
		tables = append(tables, table)

		columns := append(append([]string{}, periodColumns...), spec.Keys...)
		stmt := fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s)",
			quoteIdent("uq_"+table+"_periodo"), quoteTable(schema, table), strings.Join(columns, ", "))
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("unique key on %s: %w", table, err)
		}
	}

	for _, table := range tables {
		trigger := quoteIdent("trg_" + table + "_updated_at")
		if err := db.Exec(fmt.Sprintf("DROP TRIGGER IF EXISTS %s ON %s", trigger, quoteTable(schema, table))).Error; err != nil {
			return err
		}
		if err := db.Exec(fmt.Sprintf("CREATE TRIGGER %s BEFORE UPDATE ON %s FOR EACH ROW EXECUTE FUNCTION %s()",
			trigger, quoteTable(schema, table), fn)).Error; err != nil {
			return fmt.Errorf("updated_at trigger on %s: %w", table, err)
		}
	}
	return nil
}
