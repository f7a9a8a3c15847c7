package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/zhouzirui/crickgenius/internal/model/chat"
)

var (
	ErrCredentialsRequired = errors.New("username and password must be non-empty")
	ErrUserExists          = errors.New("username already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidToken        = errors.New("invalid session token")
)

// Service 负责账户注册、登录校验与会话令牌签发。
type Service struct {
	db       *gorm.DB
	secret   []byte
	lifetime time.Duration
}

func NewService(db *gorm.DB, secret string, lifetime time.Duration) *Service {
	return &Service{db: db, secret: []byte(secret), lifetime: lifetime}
}

// Lifetime 会话有效期
func (s *Service) Lifetime() time.Duration {
	return s.lifetime
}

// Register creates an account. Username and password are trimmed first.
func (s *Service) Register(ctx context.Context, creds chat.Credentials) (chat.Profile, error) {
	username, password, err := normalize(creds)
	if err != nil {
		return chat.Profile{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return chat.Profile{}, fmt.Errorf("hash password: %w", err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&chat.User{}).Where("username = ?", username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUserExists
		}
		return tx.Create(&chat.User{Username: username, PasswordHash: string(hash)}).Error
	})
	if err != nil {
		if errors.Is(err, ErrUserExists) || errors.Is(err, gorm.ErrDuplicatedKey) {
			return chat.Profile{}, ErrUserExists
		}
		return chat.Profile{}, fmt.Errorf("create user: %w", err)
	}

	log.Printf("[auth] registered user=%s", username)
	return chat.Profile{Username: username}, nil
}

// Login checks the password against the stored hash.
func (s *Service) Login(ctx context.Context, creds chat.Credentials) (chat.Profile, error) {
	username, password, err := normalize(creds)
	if err != nil {
		return chat.Profile{}, err
	}

	var user chat.User
	if err := s.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return chat.Profile{}, ErrInvalidCredentials
		}
		return chat.Profile{}, fmt.Errorf("load user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return chat.Profile{}, ErrInvalidCredentials
	}
	return chat.Profile{Username: user.Username}, nil
}

// IssueToken signs a session token for username.
func (s *Service) IssueToken(username string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.lifetime)
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, expires, nil
}

// ParseToken returns the username carried by a valid, unexpired token.
func (s *Service) ParseToken(raw string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

func normalize(creds chat.Credentials) (string, string, error) {
	username := strings.TrimSpace(creds.Username)
	password := strings.TrimSpace(creds.Password)
	if username == "" || password == "" {
		return "", "", ErrCredentialsRequired
	}
	return username, password, nil
}
