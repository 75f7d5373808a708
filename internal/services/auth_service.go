package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"rechnung/server/internal/models"
)

// Claims is the JWT body issued to the admin
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// AuthService handles admin login and credential changes
type AuthService struct {
	db     *gorm.DB
	secret []byte
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewAuthService(db *gorm.DB, secret string, ttl time.Duration, log *zap.Logger) *AuthService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{db: db, secret: []byte(secret), ttl: ttl, log: log, now: time.Now}
}

// EnsureAdmin creates the admin account when none exists yet
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.AdminUser{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count admins: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	admin := models.AdminUser{Username: username, PasswordHash: string(hash)}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin: %w", err)
	}
	s.log.Info("admin user created", zap.String("username", username))
	return nil
}

// Login checks the password and issues a token
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	var admin models.AdminUser
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&admin).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to load admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	now := s.now()
	admin.LastLoginAt = &now
	if err := s.db.WithContext(ctx).Model(&admin).Update("last_login_at", now).Error; err != nil {
		s.log.Warn("failed to record login time", zap.Error(err))
	}

	token, expires, err := s.issue(admin, now)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

func (s *AuthService) issue(admin models.AdminUser, now time.Time) (string, time.Time, error) {
	expires := now.Add(s.ttl)
	claims := Claims{
		Username: admin.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   admin.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return token, expires, nil
}

// ParseToken validates signature and expiry
func (s *AuthService) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ChangeCredentials updates username and/or password after checking the old password.
// Empty new values keep the current ones.
func (s *AuthService) ChangeCredentials(ctx context.Context, adminID, oldPassword, newUsername, newPassword string) error {
	var admin models.AdminUser
	err := s.db.WithContext(ctx).First(&admin, "id = ?", adminID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrAdminNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load admin: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(oldPassword)); err != nil {
		return ErrInvalidCredentials
	}

	updates := map[string]interface{}{}
	if u := strings.TrimSpace(newUsername); u != "" {
		updates["username"] = u
	}
	if newPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		updates["password_hash"] = string(hash)
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Model(&admin).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to update credentials: %w", err)
	}
	s.log.Info("admin credentials changed", zap.String("admin_id", adminID))
	return nil
}
