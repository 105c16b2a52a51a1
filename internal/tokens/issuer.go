package tokens

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidToken = errors.New("invalid token")

// Token is a signed JWT together with the values callers persist or put in cookies.
type Token struct {
	Value     string
	ID        string
	ExpiresAt time.Time
}

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Issuer signs access tokens with the access secret and refresh tokens with
// the refresh secret. It holds no mutable state and is safe for concurrent use.
type Issuer struct {
	cfg Config
	now func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the time source used for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

func NewIssuer(cfg Config, opts ...Option) *Issuer {
	i := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Issuer) AccessTTL() time.Duration  { return i.cfg.AccessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.cfg.RefreshTTL }

func (i *Issuer) IssueAccessToken(id Identity) (Token, error) {
	now := i.now()
	exp := now.Add(i.cfg.AccessTTL)
	jti := uuid.NewString()
	claims := AccessClaims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
		Type:   typeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}
	return sign(claims, i.cfg.AccessSecret, jti, exp)
}

func (i *Issuer) IssueRefreshToken(id Identity) (Token, error) {
	now := i.now()
	exp := now.Add(i.cfg.RefreshTTL)
	jti := uuid.NewString()
	claims := RefreshClaims{
		UserID: id.UserID,
		Email:  id.Email,
		Role:   id.Role,
		Type:   typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
	}
	return sign(claims, i.cfg.RefreshSecret, jti, exp)
}

func sign(claims jwt.Claims, secret []byte, jti string, exp time.Time) (Token, error) {
	if len(secret) == 0 {
		return Token{}, errors.New("signing secret is empty")
	}
	value, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}
	return Token{Value: value, ID: jti, ExpiresAt: exp}, nil
}

// ParseAccessToken checks signature and expiry against the access secret.
func (i *Issuer) ParseAccessToken(raw string) (*AccessClaims, error) {
	var claims AccessClaims
	if err := i.parse(raw, &claims, i.cfg.AccessSecret); err != nil {
		return nil, err
	}
	if claims.Type != typeAccess {
		return nil, fmt.Errorf("%w: not an access token", ErrInvalidToken)
	}
	if claims.UserID == 0 || !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: malformed identity", ErrInvalidToken)
	}
	return &claims, nil
}

func (i *Issuer) VerifyAccessToken(raw string) (Identity, error) {
	claims, err := i.ParseAccessToken(raw)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}

// ParseRefreshToken checks signature and expiry against the refresh secret.
func (i *Issuer) ParseRefreshToken(raw string) (*RefreshClaims, error) {
	var claims RefreshClaims
	if err := i.parse(raw, &claims, i.cfg.RefreshSecret); err != nil {
		return nil, err
	}
	if claims.Type != typeRefresh {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	if claims.UserID == 0 || !claims.Role.Valid() || claims.ID == "" {
		return nil, fmt.Errorf("%w: malformed identity", ErrInvalidToken)
	}
	return &claims, nil
}

func (i *Issuer) VerifyRefreshToken(raw string) (Identity, error) {
	claims, err := i.ParseRefreshToken(raw)
	if err != nil {
		return Identity{}, err
	}
	return claims.Identity(), nil
}

func (i *Issuer) parse(raw string, claims jwt.Claims, secret []byte) error {
	if raw == "" {
		return fmt.Errorf("%w: empty", ErrInvalidToken)
	}
	tkn, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return ErrInvalidToken
	}
	return nil
}
