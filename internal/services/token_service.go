package services

import (
	"context"
	"time"

	"bailian-gateway/internal/config"
	"bailian-gateway/internal/logger"
	"bailian-gateway/internal/models"
	"bailian-gateway/internal/pkg/errors"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"

	revokedTokenPrefix = "revoked_token:"
)

var ErrInvalidToken = errors.Authentication(nil, "Invalid or expired token")

// Identity is what a verified token says about its bearer.
type Identity struct {
	UserID    uuid.UUID
	Username  string
	Roles     models.Roles
	TokenID   string
	ExpiresAt time.Time
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type Claims struct {
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Roles     []string  `json:"roles"`
	TokenType TokenKind `json:"token_type"`
	jwt.StandardClaims
}

type TokenService interface {
	Issue(user *models.User) (*TokenPair, error)
	Verify(ctx context.Context, token string, kind TokenKind) (*Identity, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Revoke(ctx context.Context, token string) error
}

type tokenService struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	denylist   CacheService
	now        func() time.Time
}

func NewTokenService(cfg config.AuthConfig, denylist CacheService) TokenService {
	return newTokenService(cfg, denylist, time.Now)
}

func newTokenService(cfg config.AuthConfig, denylist CacheService, now func() time.Time) *tokenService {
	return &tokenService{
		secret:     []byte(cfg.JWTSecret),
		issuer:     cfg.Issuer,
		accessTTL:  cfg.AccessTokenTTL,
		refreshTTL: cfg.RefreshTokenTTL,
		denylist:   denylist,
		now:        now,
	}
}

func (s *tokenService) Issue(user *models.User) (*TokenPair, error) {
	identity := &Identity{UserID: user.ID, Username: user.Username, Roles: user.Roles}

	access, err := s.sign(identity, AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := s.sign(identity, RefreshToken, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int64(s.accessTTL / time.Second),
	}, nil
}

func (s *tokenService) sign(identity *Identity, kind TokenKind, ttl time.Duration) (string, error) {
	issuedAt := s.now()
	claims := Claims{
		UserID:    identity.UserID.String(),
		Username:  identity.Username,
		Roles:     identity.Roles.Strings(),
		TokenType: kind,
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.NewString(),
			Subject:   identity.UserID.String(),
			Issuer:    s.issuer,
			IssuedAt:  issuedAt.Unix(),
			ExpiresAt: issuedAt.Add(ttl).Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "failed to sign token")
	}
	return signed, nil
}

// parse checks signature, expiry and kind but not the denylist.
func (s *tokenService) parse(tokenString string, kind TokenKind) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != kind || claims.ExpiresAt == 0 || claims.Id == "" {
		return nil, ErrInvalidToken
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return nil, ErrInvalidToken
	}

	return &Identity{
		UserID:    userID,
		Username:  claims.Username,
		Roles:     models.RolesFromStrings(claims.Roles),
		TokenID:   claims.Id,
		ExpiresAt: time.Unix(claims.ExpiresAt, 0),
	}, nil
}

func (s *tokenService) Verify(ctx context.Context, tokenString string, kind TokenKind) (*Identity, error) {
	identity, err := s.parse(tokenString, kind)
	if err != nil {
		return nil, err
	}

	revoked, err := s.denylist.Exists(ctx, revokedTokenPrefix+identity.TokenID)
	if err != nil {
		// Fail closed when the denylist cannot be consulted.
		logger.WithContext(ctx).WithError(err).Error("Token denylist lookup failed")
		return nil, ErrInvalidToken
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	return identity, nil
}

// Refresh mints a new access token. The refresh token stays valid.
func (s *tokenService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	identity, err := s.Verify(ctx, refreshToken, RefreshToken)
	if err != nil {
		return nil, err
	}

	access, err := s.sign(identity, AccessToken, s.accessTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.accessTTL / time.Second),
	}, nil
}

func (s *tokenService) Revoke(ctx context.Context, tokenString string) error {
	identity, err := s.parse(tokenString, AccessToken)
	if err != nil {
		identity, err = s.parse(tokenString, RefreshToken)
		if err != nil {
			return err
		}
	}

	ttl := identity.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}

	if err := s.denylist.Set(ctx, revokedTokenPrefix+identity.TokenID, true, ttl); err != nil {
		return errors.Wrap(err, "failed to revoke token")
	}

	logger.LogEvent(logrus.InfoLevel, "Token revoked", logrus.Fields{
		"user_id":  identity.UserID.String(),
		"token_id": identity.TokenID,
	})
	return nil
}
