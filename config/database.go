package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const defaultSalesSchema = "LealSilver"

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

// SetDB replaces the shared handle. Used by tests and CLIs that open their own connection.
func SetDB(d *gorm.DB) {
	db = d
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// SalesSchema is the postgres schema holding the sales aggregates and goals.
func SalesSchema() string {
	if v := strings.TrimSpace(os.Getenv("DB_SCHEMA")); v != "" {
		return v
	}
	return defaultSalesSchema
}

// PostgresDSN builds the gorm postgres DSN from DB_* env.
// DATABASE_URL wins when set.
func PostgresDSN() string {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url
	}
	sslMode := os.Getenv("DB_SSLMODE")
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
		sslMode,
		timeZone(),
	)
}

func timeZone() string {
	if tz := os.Getenv("APP_TIMEZONE"); tz != "" {
		return tz
	}
	return "America/Mexico_City"
}

// OpenDatabase opens one postgres connection with the shared gorm config and pool settings.
func OpenDatabase(dsn string) (*gorm.DB, error) {
	conn, err := gorm.Open(postgres.Open(dsn), initConfig())
	if err != nil {
		return nil, err
	}

	// Env overrides (optional):
	// - DB_MAX_OPEN_CONNS (default 25)
	// - DB_MAX_IDLE_CONNS (default 10)
	// - DB_CONN_MAX_LIFETIME_SECONDS (default 300)
	if sqlDB, derr := conn.DB(); derr == nil && sqlDB != nil {
		maxOpen := intFromEnv("DB_MAX_OPEN_CONNS", 25)
		maxIdle := intFromEnv("DB_MAX_IDLE_CONNS", 10)
		connMaxLife := time.Duration(intFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300)) * time.Second

		if maxOpen > 0 {
			sqlDB.SetMaxOpenConns(maxOpen)
		}
		if maxIdle >= 0 {
			sqlDB.SetMaxIdleConns(maxIdle)
		}
		if connMaxLife > 0 {
			sqlDB.SetConnMaxLifetime(connMaxLife)
		}
	}

	if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
		log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
	}
	return conn, nil
}

// ConnectDatabaseWithRetry connects and sets the global DB.
// Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	dsn := PostgresDSN()

	var attempt int
	for {
		attempt++
		conn, err := OpenDatabase(dsn)
		if err == nil {
			db = conn
			log.Printf("connected to database (attempt=%d)", attempt)
			return
		}

		sleep := time.Second * time.Duration(1<<min(attempt, 5))
		if sleep > 30*time.Second {
			sleep = 30 * time.Second
		}
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolFromEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	level := logger.Error
	if boolFromEnv("GORM_DEBUG") {
		level = logger.Info
	}
	return logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:                  false,
			LogLevel:                  level,
			SlowThreshold:             time.Second,
			IgnoreRecordNotFoundError: true,
		},
	)
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
