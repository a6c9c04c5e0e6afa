package config

import (
	"os"
	"strings"
)

var defaultBranches = []string{"Centro", "LM", "Auditorio", "Ahumada"}

// PeriodConfig bounds the reporting coordinates an upload may target.
type PeriodConfig struct {
	Branches    []string
	MinYear     int
	MaxYear     int
	DefaultYear int // 0 means the year must always be supplied
}

// LoadPeriodConfig reads:
// - SUCURSALES="Centro,LM,Auditorio,Ahumada"
// - MIN_YEAR (default 2020), MAX_YEAR (default 2100), DEFAULT_YEAR (default none)
func LoadPeriodConfig() PeriodConfig {
	cfg := PeriodConfig{
		Branches:    defaultBranches,
		MinYear:     intFromEnv("MIN_YEAR", 2020),
		MaxYear:     intFromEnv("MAX_YEAR", 2100),
		DefaultYear: intFromEnv("DEFAULT_YEAR", 0),
	}
	if raw := strings.TrimSpace(os.Getenv("SUCURSALES")); raw != "" {
		var branches []string
		for _, part := range strings.Split(raw, ",") {
			if b := strings.TrimSpace(part); b != "" {
				branches = append(branches, b)
			}
		}
		if len(branches) > 0 {
			cfg.Branches = branches
		}
	}
	return cfg
}

// CanonicalBranch matches name case-insensitively and returns the configured spelling.
func (c PeriodConfig) CanonicalBranch(name string) (string, bool) {
	name = strings.TrimSpace(name)
	for _, b := range c.Branches {
		if strings.EqualFold(b, name) {
			return b, true
		}
	}
	return "", false
}
