package services

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"owlet/internal/core/domain"
	"owlet/internal/core/ports"
	"owlet/pkg/validation"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims is the JWT payload. Verification happens exactly once at the
// HTTP/socket boundary; everything downstream receives the resulting
// domain.Identity by value.
type Claims struct {
	UserID    domain.UserID `json:"user_id"`
	Email     string        `json:"email"`
	Username  string        `json:"username"`
	AvatarURL string        `json:"avatar_url,omitempty"`
	jwt.RegisteredClaims
}

type AuthService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
	users          ports.UserRepository
}

func NewAuthService(jwtSecret string, accessTokenTTL time.Duration, users ports.UserRepository) *AuthService {
	return &AuthService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
		users:          users,
	}
}

func (s *AuthService) GenerateToken(identity domain.Identity) (string, error) {
	claims := &Claims{
		UserID:    identity.UserID,
		Email:     identity.Email,
		Username:  identity.Username,
		AvatarURL: identity.AvatarURL,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) ValidateToken(tokenString string) (domain.Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return domain.Identity{}, ErrInvalidToken
	}
	return domain.Identity{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Username:  claims.Username,
		AvatarURL: claims.AvatarURL,
	}, nil
}

// SyncIdentity upserts the verified identity into the user store and
// returns the stored profile.
func (s *AuthService) SyncIdentity(ctx context.Context, identity domain.Identity) (*domain.User, error) {
	if err := validation.ValidateUsername(identity.Username); err != nil {
		return nil, err
	}

	existing, err := s.users.GetByID(ctx, identity.UserID)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	user := &domain.User{
		ID:        identity.UserID,
		Username:  identity.Username,
		Email:     identity.Email,
		AvatarURL: identity.AvatarURL,
		Status:    domain.StatusOnline,
		CreatedAt: time.Now(),
	}
	if existing != nil {
		user.Status = existing.Status
		user.CreatedAt = existing.CreatedAt
		if identity.AvatarURL == "" {
			user.AvatarURL = existing.AvatarURL
		}
	}
	if err := s.users.Upsert(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// UpdateProfile changes mutable profile fields. Empty values leave the
// stored field untouched.
func (s *AuthService) UpdateProfile(ctx context.Context, userID domain.UserID, username, avatarURL string) (*domain.User, error) {
	if username != "" {
		if err := validation.ValidateUsername(username); err != nil {
			return nil, err
		}
	}
	if err := s.users.UpdateProfile(ctx, userID, username, avatarURL); err != nil {
		return nil, err
	}
	return s.users.GetByID(ctx, userID)
}
