package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/lealcafe/ventas_backend/config"
)

// Period is the reporting coordinate shared by every row of one upload.
type Period struct {
	Sucursal string `json:"sucursal"`
	Anio     int    `json:"anio"`
	Mes      int    `json:"mes"`
	Semana   int    `json:"semana"`
}

func (p Period) String() string {
	return fmt.Sprintf("%s/%04d-%02d/semana-%d", p.Sucursal, p.Anio, p.Mes, p.Semana)
}

// PeriodForm carries the raw upload form fields.
type PeriodForm struct {
	Sucursal string `form:"sucursal" json:"sucursal" binding:"required"`
	Anio     string `form:"anio" json:"anio"` // blank defaults to DEFAULT_YEAR
	Mes      string `form:"mes" json:"mes" binding:"required"`
	Semana   string `form:"semana" json:"semana" binding:"required"`
}

func ValidateMonth(mes int) error {
	if mes < 1 || mes > 12 {
		return &ConfigurationError{Field: "mes", Value: strconv.Itoa(mes), Reason: "must be between 1 and 12"}
	}
	return nil
}

func ValidateWeek(semana int) error {
	if semana < 1 || semana > 5 {
		return &ConfigurationError{Field: "semana", Value: strconv.Itoa(semana), Reason: "must be between 1 and 5"}
	}
	return nil
}

func ValidateYear(cfg config.PeriodConfig, anio int) error {
	if anio < cfg.MinYear || anio > cfg.MaxYear {
		return &ConfigurationError{
			Field:  "anio",
			Value:  strconv.Itoa(anio),
			Reason: fmt.Sprintf("must be between %d and %d", cfg.MinYear, cfg.MaxYear),
		}
	}
	return nil
}

// ResolveBranch returns the configured spelling of sucursal.
func ResolveBranch(cfg config.PeriodConfig, sucursal string) (string, error) {
	if strings.TrimSpace(sucursal) == "" {
		return "", &ConfigurationError{Field: "sucursal", Reason: "is required"}
	}
	branch, ok := cfg.CanonicalBranch(sucursal)
	if !ok {
		return "", &ConfigurationError{
			Field:  "sucursal",
			Value:  sucursal,
			Reason: "must be one of " + strings.Join(cfg.Branches, ", "),
		}
	}
	return branch, nil
}

// ResolvePeriod validates the upload form against cfg. Every failure is a *ConfigurationError.
func ResolvePeriod(cfg config.PeriodConfig, form PeriodForm) (Period, error) {
	branch, err := ResolveBranch(cfg, form.Sucursal)
	if err != nil {
		return Period{}, err
	}

	anio := cfg.DefaultYear
	if strings.TrimSpace(form.Anio) != "" || anio == 0 {
		if anio, err = formInt("anio", form.Anio); err != nil {
			return Period{}, err
		}
	}
	if err := ValidateYear(cfg, anio); err != nil {
		return Period{}, err
	}

	mes, err := formInt("mes", form.Mes)
	if err != nil {
		return Period{}, err
	}
	if err := ValidateMonth(mes); err != nil {
		return Period{}, err
	}

	semana, err := formInt("semana", form.Semana)
	if err != nil {
		return Period{}, err
	}
	if err := ValidateWeek(semana); err != nil {
		return Period{}, err
	}

	return Period{Sucursal: branch, Anio: anio, Mes: mes, Semana: semana}, nil
}

func formInt(field, raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &ConfigurationError{Field: field, Reason: "is required"}
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigurationError{Field: field, Value: raw, Reason: "must be a whole number"}
	}
	return n, nil
}
