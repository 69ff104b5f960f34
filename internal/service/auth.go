package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"roomhub/internal/domain"
	"roomhub/internal/repository"
)

// AuthService handles registration, login and token issuance.
type AuthService struct {
	users     repository.UserRepository
	jwtSecret []byte
	jwtExpiry time.Duration
}

// NewAuthService creates an AuthService. jwtExpiryHours defaults to 24 when
// non-positive.
func NewAuthService(users repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if users == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = 24
	}
	return &AuthService{
		users:     users,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register creates a new user. The returned user has its password hash
// cleared.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logCtx := logrus.WithFields(logrus.Fields{"name": name, "email": email})

	if name == "" || email == "" || password == "" {
		return nil, ErrValidation
	}

	hashed, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("auth: password hash failed during registration")
		return nil, ErrInternalServer
	}

	user := &domain.User{
		Name:     name,
		Email:    email,
		Password: hashed,
	}
	if err := s.users.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Warn("auth: registration failed, email already exists")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("auth: database error during registration")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("auth: user registered")
	user.Password = ""
	return user, nil
}

// Login verifies the credentials and returns a signed JWT plus the user.
// Unknown email and bad password both collapse to ErrAuthenticationFailed.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, *domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logCtx := logrus.WithField("email", email)

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.Warn("auth: login failed, user not found")
		} else {
			logCtx.WithError(err).Warn("auth: login failed, error finding user")
		}
		return "", nil, ErrAuthenticationFailed
	}
	if user == nil {
		return "", nil, ErrAuthenticationFailed
	}

	if !checkPassword(password, user.Password) {
		logCtx.Warn("auth: login failed, invalid password")
		return "", nil, ErrAuthenticationFailed
	}

	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("auth: token generation failed")
		return "", nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("auth: user logged in")
	user.Password = ""
	return token, user, nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

func checkPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *AuthService) generateJWT(userID uint) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
