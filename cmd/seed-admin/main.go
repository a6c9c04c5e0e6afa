// seed-admin creates or updates the admin user of the sales console.
//
// Usage (from backend directory):
//   DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... \
//   ADMIN_USERNAME=admin ADMIN_PASSWORD=... go run ./cmd/seed-admin
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/models"
	"github.com/lealcafe/ventas_backend/utils"
)

const (
	defaultAdminUsername = "admin"
	adminName            = "Administrador"
)

func main() {
	ctx := context.Background()

	username := strings.ToLower(strings.TrimSpace(os.Getenv("ADMIN_USERNAME")))
	if username == "" {
		username = defaultAdminUsername
	}
	password := os.Getenv("ADMIN_PASSWORD")
	if len(password) < 8 {
		fmt.Fprintln(os.Stderr, "ADMIN_PASSWORD must be set (at least 8 characters).")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}
	if err := models.Migrate(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate: %v\n", err)
		os.Exit(1)
	}

	existing, err := models.GetUserByUsername(ctx, db, username)
	if err != nil {
		if !errors.Is(err, utils.ErrorRecordNotFound) {
			fmt.Fprintf(os.Stderr, "failed to lookup user: %v\n", err)
			os.Exit(1)
		}
		if _, err := models.CreateUser(ctx, db, &models.NewUser{
			Username: username,
			Name:     adminName,
			Password: password,
			Role:     models.UserRoleAdmin,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "failed to create admin user: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Created admin user: username=%q\n", username)
		return
	}

	hashed, err := utils.HashPassword(password)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash password: %v\n", err)
		os.Exit(1)
	}
	if err := db.WithContext(ctx).Model(&models.User{}).Where("id = ?", existing.ID).Updates(map[string]any{
		"password":  hashed,
		"is_active": true,
		"role":      models.UserRoleAdmin,
	}).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to update admin user: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Updated admin user: username=%q\n", username)
}
