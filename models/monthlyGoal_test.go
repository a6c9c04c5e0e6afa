package models

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeGoalProgress(t *testing.T) {
	cases := []struct {
		meta, actual string
		wantPct      string
		wantDiff     string
		wantEstado   string
	}{
		{"1000", "1000", "100", "0", GoalStatusMet},
		{"1000", "1250.50", "125.05", "250.50", GoalStatusMet},
		{"1000", "500", "50", "-500", GoalStatusInProgress},
		{"1000", "999.99", "100", "-0.01", GoalStatusMet},
		{"1000", "499.90", "49.99", "-500.10", GoalStatusNeedAction},
		{"1000", "0", "0", "-1000", GoalStatusNeedAction},
		{"0", "10", "0", "10", GoalStatusNeedAction},
	}
	for _, tc := range cases {
		goal := &MonthlyGoal{Sucursal: "Centro", Anio: 2024, Mes: 3, MetaMonto: decimal.RequireFromString(tc.meta)}
		got := ComputeGoalProgress(goal, decimal.RequireFromString(tc.actual))
		if !got.Porcentaje.Equal(decimal.RequireFromString(tc.wantPct)) {
			t.Fatalf("meta=%s actual=%s: porcentaje=%s want %s", tc.meta, tc.actual, got.Porcentaje, tc.wantPct)
		}
		if !got.Diferencia.Equal(decimal.RequireFromString(tc.wantDiff)) {
			t.Fatalf("meta=%s actual=%s: diferencia=%s want %s", tc.meta, tc.actual, got.Diferencia, tc.wantDiff)
		}
		if got.Estado != tc.wantEstado {
			t.Fatalf("meta=%s actual=%s: estado=%s want %s", tc.meta, tc.actual, got.Estado, tc.wantEstado)
		}
	}
}

func TestValidateGoalInput(t *testing.T) {
	cfg := testPeriodConfig()
	branch, err := validateGoalInput(cfg, &NewMonthlyGoal{Sucursal: "lm", Anio: 2024, Mes: 6, MetaMonto: decimal.NewFromInt(50000)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if branch != "LM" {
		t.Fatalf("branch=%s want LM", branch)
	}

	cases := []struct {
		name  string
		input NewMonthlyGoal
		field string
	}{
		{"branch", NewMonthlyGoal{Sucursal: "Norte", Anio: 2024, Mes: 6, MetaMonto: decimal.NewFromInt(1)}, "sucursal"},
		{"year", NewMonthlyGoal{Sucursal: "LM", Anio: 1999, Mes: 6, MetaMonto: decimal.NewFromInt(1)}, "anio"},
		{"month", NewMonthlyGoal{Sucursal: "LM", Anio: 2024, Mes: 13, MetaMonto: decimal.NewFromInt(1)}, "mes"},
		{"amount", NewMonthlyGoal{Sucursal: "LM", Anio: 2024, Mes: 6}, "meta_monto"},
	}
	for _, tc := range cases {
		_, err := validateGoalInput(cfg, &tc.input)
		var cerr *ConfigurationError
		if !errors.As(err, &cerr) || cerr.Field != tc.field {
			t.Fatalf("%s: got %v", tc.name, err)
		}
	}
}
