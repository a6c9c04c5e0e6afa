package models

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lealcafe/ventas_backend/config"
	"github.com/lealcafe/ventas_backend/utils"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	UserRoleAdmin = "admin"
	UserRoleUser  = "usuario"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Username  string    `gorm:"size:255;not null;unique" json:"username"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:20;not null;default:'usuario'" json:"role"`
	IsActive  *bool     `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return config.SalesSchema() + ".usuarios"
}

type NewUser struct {
	Username string `json:"username" binding:"required,min=3"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
	Role     string `json:"role" binding:"omitempty,oneof=admin usuario"`
}

type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type LoginInfo struct {
	Token     string `json:"token"`
	Jwt       string `json:"jwt"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"expires_at"`
}

func sessionLifespan() time.Duration {
	hours, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil || hours <= 0 {
		hours = 12
	}
	return time.Duration(hours) * time.Hour
}

// Login checks the credentials and opens a redis session "Token:<uuid>" -> username.
func Login(ctx context.Context, db *gorm.DB, username string, password string) (*LoginInfo, error) {
	var user User
	username = strings.ToLower(strings.TrimSpace(username))
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorInvalidLogin
		}
		return nil, err
	}

	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, utils.ErrorInvalidLogin
		}
		return nil, err
	}
	if user.IsActive != nil && !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	lifespan := sessionLifespan()
	token := uuid.New().String()
	if err := config.SetRedisValue("Token:"+token, user.Username, lifespan); err != nil {
		return nil, err
	}
	jwt, err := utils.JwtGenerate(user.ID, user.Username, user.Role)
	if err != nil {
		return nil, err
	}

	return &LoginInfo{
		Token:     token,
		Jwt:       jwt,
		Name:      user.Name,
		Role:      user.Role,
		ExpiresAt: time.Now().Add(lifespan).Unix(),
	}, nil
}

// Logout destroys the current session.
func Logout(ctx context.Context) error {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return errors.New("token is required")
	}
	return config.RemoveRedisKey("Token:" + token)
}

// CreateUser hashes the password and stores a new active user.
func CreateUser(ctx context.Context, db *gorm.DB, input *NewUser) (*User, error) {
	username := strings.ToLower(strings.TrimSpace(input.Username))
	var count int64
	if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate username")
	}

	hashed, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = UserRoleUser
	}
	user := User{
		Username: username,
		Name:     strings.TrimSpace(input.Name),
		Password: hashed,
		Role:     role,
		IsActive: utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUserByUsername(ctx context.Context, db *gorm.DB, username string) (*User, error) {
	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &user, nil
}
