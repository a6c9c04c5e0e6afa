package models_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if strings.TrimSpace(os.Getenv("INTEGRATION_TESTS")) == "" {
		t.Skip("set INTEGRATION_TESTS=1 to run integration tests (requires docker)")
	}

	pgName, pgPort := startPostgresContainer(t)
	t.Cleanup(func() { _ = dockerRmForce(pgName) })

	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", pgPort)
	t.Setenv("DB_USER", "postgres")
	t.Setenv("DB_PASSWORD", "testpw")
	t.Setenv("DB_NAME", "ventas_test")
	t.Setenv("DB_SCHEMA", "LealSilver")

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		t.Fatalf("db is nil after ConnectDatabaseWithRetry")
	}
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// running twice must be harmless
	if err := models.Migrate(db); err != nil {
		t.Fatalf("Migrate (second run): %v", err)
	}
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestUpsertPaymentTypeScenario(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	period := models.Period{Sucursal: "Centro", Anio: 2024, Mes: 3, Semana: 2}

	first := []models.SalesRecord{
		models.SalesByPaymentType{TipoPago: "Efectivo", Total: dec("1200.50"), Porcentaje: dec("60")},
		models.SalesByPaymentType{TipoPago: "Tarjeta", Total: dec("800.25"), Porcentaje: dec("40")},
	}
	counts, err := models.UpsertSalesBatch(ctx, db, models.DimensionPaymentType, period, "ana", first)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if counts != (models.UpsertCounts{Inserted: 2}) {
		t.Fatalf("first counts=%+v", counts)
	}

	var before []models.SalesByPaymentType
	if err := db.Order("tipo_pago").Find(&before).Error; err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(before) != 2 {
		t.Fatalf("rows=%d want 2", len(before))
	}

	// identical re-upload: nothing inserted, nothing rewritten
	counts, err = models.UpsertSalesBatch(ctx, db, models.DimensionPaymentType, period, "ana", first)
	if err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	if counts != (models.UpsertCounts{Unchanged: 2}) {
		t.Fatalf("re-upload counts=%+v", counts)
	}

	time.Sleep(20 * time.Millisecond)
	second := []models.SalesRecord{
		models.SalesByPaymentType{TipoPago: "Efectivo", Total: dec("1200.50"), Porcentaje: dec("60")},
		models.SalesByPaymentType{TipoPago: "Tarjeta", Total: dec("900.00"), Porcentaje: dec("40")},
	}
	counts, err = models.UpsertSalesBatch(ctx, db, models.DimensionPaymentType, period, "luis", second)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if counts != (models.UpsertCounts{Updated: 1, Unchanged: 1}) {
		t.Fatalf("second counts=%+v", counts)
	}

	var after []models.SalesByPaymentType
	if err := db.Order("tipo_pago").Find(&after).Error; err != nil {
		t.Fatalf("read rows: %v", err)
	}
	if len(after) != 2 {
		t.Fatalf("rows=%d want 2", len(after))
	}
	efectivo, tarjeta := after[0], after[1]
	if !tarjeta.Total.Equal(dec("900")) || tarjeta.CreatedBy != "luis" {
		t.Fatalf("tarjeta not updated: %+v", tarjeta)
	}
	if !tarjeta.UpdatedAt.After(before[1].UpdatedAt) {
		t.Fatalf("tarjeta updated_at did not advance: %s -> %s", before[1].UpdatedAt, tarjeta.UpdatedAt)
	}
	if !efectivo.UpdatedAt.Equal(before[0].UpdatedAt) || efectivo.CreatedBy != "ana" {
		t.Fatalf("efectivo was rewritten: %+v", efectivo)
	}
	if !tarjeta.CreatedAt.Equal(before[1].CreatedAt) {
		t.Fatalf("created_at changed on update")
	}
}

func TestUpsertModifierSizesAreDistinctRows(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	period := models.Period{Sucursal: "LM", Anio: 2024, Mes: 5, Semana: 1}

	records := []models.SalesRecord{
		models.SalesByModifier{Grupo: "Cafe", ClavePlatillo: "LAT", Tamano: "Grande", Cantidad: 3, Subtotal: dec("150")},
		models.SalesByModifier{Grupo: "Cafe", ClavePlatillo: "LAT", Tamano: "Chico", Cantidad: 2, Subtotal: dec("70")},
		models.SalesByModifier{Grupo: "Cafe", ClavePlatillo: "LAT", Cantidad: 1, Subtotal: dec("40")},
	}
	counts, err := models.UpsertSalesBatch(ctx, db, models.DimensionModifier, period, "ana", records)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if counts.Inserted != 3 {
		t.Fatalf("counts=%+v", counts)
	}

	// a size-less row lands on the same key again
	counts, err = models.UpsertSalesBatch(ctx, db, models.DimensionModifier, period, "ana", []models.SalesRecord{
		models.SalesByModifier{Grupo: "Cafe", ClavePlatillo: "LAT", Cantidad: 5, Subtotal: dec("200")},
	})
	if err != nil {
		t.Fatalf("upsert size-less: %v", err)
	}
	if counts != (models.UpsertCounts{Updated: 1}) {
		t.Fatalf("size-less counts=%+v", counts)
	}

	var n int64
	db.Model(&models.SalesByModifier{}).Count(&n)
	if n != 3 {
		t.Fatalf("rows=%d want 3", n)
	}
}

func TestUpsertPeriodsAreAdditive(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	rows := []models.SalesRecord{
		models.SalesByHour{Hora: "08:00", Monto: dec("100")},
		models.SalesByHour{Hora: "09:00", Monto: dec("250")},
	}
	for semana := 1; semana <= 2; semana++ {
		period := models.Period{Sucursal: "Centro", Anio: 2024, Mes: 3, Semana: semana}
		counts, err := models.UpsertSalesBatch(ctx, db, models.DimensionHour, period, "ana", rows)
		if err != nil {
			t.Fatalf("semana %d: %v", semana, err)
		}
		if counts.Inserted != 2 {
			t.Fatalf("semana %d counts=%+v", semana, counts)
		}
	}

	var n int64
	db.Model(&models.SalesByHour{}).Count(&n)
	if n != 4 {
		t.Fatalf("rows=%d want 4", n)
	}

	key := models.GoalPeriodKey{Sucursal: "Centro", Anio: 2024, Mes: 3}
	other := models.GoalPeriodKey{Sucursal: "LM", Anio: 2024, Mes: 3}
	actuals, err := models.SalesActuals(ctx, db, []models.GoalPeriodKey{key, other})
	if err != nil {
		t.Fatalf("SalesActuals: %v", err)
	}
	if !actuals[key].Equal(dec("700")) || !actuals[other].IsZero() {
		t.Fatalf("actuals=%v", actuals)
	}
}

func TestUpsertLargeBatchSpansChunks(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	period := models.Period{Sucursal: "Auditorio", Anio: 2024, Mes: 7, Semana: 3}

	records := make([]models.SalesRecord, 0, 1203)
	for i := 0; i < 1203; i++ {
		records = append(records, models.SalesByDish{
			ClavePlatillo: fmt.Sprintf("P%04d", i),
			Cantidad:      i,
			Subtotal:      decimal.NewFromInt(int64(i)),
		})
	}
	counts, err := models.UpsertSalesBatch(ctx, db, models.DimensionDish, period, "ana", records)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if counts.Inserted != 1203 {
		t.Fatalf("counts=%+v", counts)
	}
}

func TestMonthlyGoalUpsertAndDeactivate(t *testing.T) {
	db := setupPostgres(t)
	ctx := context.Background()
	cfg := config.PeriodConfig{Branches: []string{"Centro"}, MinYear: 2020, MaxYear: 2100}

	goal, err := models.UpsertMonthlyGoal(ctx, db, cfg, &models.NewMonthlyGoal{Sucursal: "centro", Anio: 2024, Mes: 3, MetaMonto: dec("50000")})
	if err != nil {
		t.Fatalf("UpsertMonthlyGoal: %v", err)
	}
	again, err := models.UpsertMonthlyGoal(ctx, db, cfg, &models.NewMonthlyGoal{Sucursal: "Centro", Anio: 2024, Mes: 3, MetaMonto: dec("60000")})
	if err != nil {
		t.Fatalf("UpsertMonthlyGoal (again): %v", err)
	}
	if again.ID != goal.ID || !again.MetaMonto.Equal(dec("60000")) || again.TipoMeta != models.GoalTypeSales {
		t.Fatalf("goal not overwritten: %+v", again)
	}

	if err := models.DeactivateMonthlyGoal(ctx, db, goal.ID); err != nil {
		t.Fatalf("DeactivateMonthlyGoal: %v", err)
	}
	goals, err := models.ListMonthlyGoals(ctx, db, models.GoalFilter{Anio: 2024})
	if err != nil {
		t.Fatalf("ListMonthlyGoals: %v", err)
	}
	if len(goals) != 0 {
		t.Fatalf("deactivated goal listed: %+v", goals)
	}
	if err := models.DeactivateMonthlyGoal(ctx, db, goal.ID); err == nil {
		t.Fatalf("second deactivate should report not found")
	}
}

func startPostgresContainer(t *testing.T) (containerName, hostPort string) {
	t.Helper()
	name := fmt.Sprintf("ventas-test-pg-%d", time.Now().UnixNano())
	out, err := dockerRun(
		"run", "-d", "--name", name,
		"-e", "POSTGRES_PASSWORD=testpw",
		"-e", "POSTGRES_DB=ventas_test",
		"-p", "127.0.0.1:0:5432",
		"postgres:16-alpine",
	)
	if err != nil {
		t.Fatalf("start postgres container: %v\n%s", err, out)
	}
	port, err := dockerHostPort(name, "5432/tcp")
	if err != nil {
		t.Fatalf("postgres docker port: %v", err)
	}
	// wait until ready
	deadline := time.Now().Add(90 * time.Second)
	for time.Now().Before(deadline) {
		_, err := dockerRun("exec", name, "pg_isready", "-U", "postgres", "-d", "ventas_test")
		if err == nil {
			// pg_isready succeeds once during the init restart; give it a moment
			time.Sleep(time.Second)
			return name, port
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("postgres did not become ready")
	return "", ""
}

func dockerHostPort(container, portProto string) (string, error) {
	out, err := dockerRun("port", container, portProto)
	if err != nil {
		return "", fmt.Errorf("docker port: %w: %s", err, out)
	}
	// Example: "127.0.0.1:49154\n"
	re := regexp.MustCompile(`:(\d+)`)
	m := re.FindStringSubmatch(out)
	if len(m) != 2 {
		return "", fmt.Errorf("unexpected docker port output: %q", out)
	}
	return m[1], nil
}

func dockerRmForce(container string) error {
	if strings.TrimSpace(container) == "" {
		return nil
	}
	_, err := dockerRun("rm", "-f", container)
	return err
}

func dockerRun(args ...string) (string, error) {
	cmd := exec.Command("docker", args...)
	b, err := cmd.CombinedOutput()
	return string(b), err
}
