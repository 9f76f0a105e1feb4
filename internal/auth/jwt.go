package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims carry the user's identity plus a type discriminator so a refresh
// token can never be presented where an access token is expected.
type Claims struct {
	UserID int    `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
	Type   string `json:"type"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret        string
	AccessExpiry  time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret:        secret,
		AccessExpiry:  30 * time.Minute,
		RefreshExpiry: 7 * 24 * time.Hour,
		Issuer:        "libchat",
	}
}

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrWrongUse      = errors.New("token used for wrong purpose")
	errMissingSecret = errors.New("missing secret")
)

func createToken(userID int, email, role, tokenType string, expiry time.Duration, cfg TokenConfig) (string, error) {
	if cfg.Secret == "" {
		return "", errMissingSecret
	}
	if expiry <= 0 {
		return "", errors.New("invalid expiry")
	}

	claims := Claims{
		UserID: userID,
		Email:  email,
		Role:   role,
		Type:   tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.Secret))
}

// CreatePair mints a fresh access/refresh pair for the user.
func CreatePair(userID int, email, role string, cfg TokenConfig) (access, refresh string, err error) {
	access, err = createToken(userID, email, role, TypeAccess, cfg.AccessExpiry, cfg)
	if err != nil {
		return "", "", err
	}
	refresh, err = createToken(userID, email, role, TypeRefresh, cfg.RefreshExpiry, cfg)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

// VerifyToken checks the signature, expiry and type discriminator.
func VerifyToken(tokenString, tokenType string, cfg TokenConfig) (*Claims, error) {
	if cfg.Secret == "" {
		return nil, errMissingSecret
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.Secret), nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != tokenType {
		return nil, ErrWrongUse
	}
	return claims, nil
}
