package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongKind    = errors.New("wrong token type")
)

type Claims struct {
	jwt.RegisteredClaims
	UserID   uint   `json:"uid"`
	Username string `json:"username,omitempty"`
	Role     *int   `json:"role,omitempty"`
	Refresh  bool   `json:"refresh,omitempty"`
}

// Tokens issues and validates HS256 access and refresh tokens.
type Tokens struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration) (*Tokens, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}
	return &Tokens{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

func (t *Tokens) IssueAccess(id Identity) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(id.UserID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.accessTTL)),
			ID:        fmt.Sprintf("%d", now.UnixNano()),
		},
		UserID:   id.UserID,
		Username: id.Username,
		Role:     id.Role,
	}
	return t.sign(claims)
}

func (t *Tokens) IssueRefresh(userID uint) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.refreshTTL)),
			ID:        fmt.Sprintf("refresh-%d", now.UnixNano()),
		},
		UserID:  userID,
		Refresh: true,
	}
	return t.sign(claims)
}

func (t *Tokens) sign(claims Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Validate parses the token string and returns its claims.
func (t *Tokens) Validate(tokenString string) (*Claims, error) {
	tok, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
		}
		return t.secret, nil
	}, jwt.WithTimeFunc(t.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ValidateAccess is Validate restricted to access tokens.
func (t *Tokens) ValidateAccess(tokenString string) (*Claims, error) {
	claims, err := t.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Refresh {
		return nil, ErrWrongKind
	}
	return claims, nil
}

// ValidateRefresh is Validate restricted to refresh tokens.
func (t *Tokens) ValidateRefresh(tokenString string) (*Claims, error) {
	claims, err := t.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	if !claims.Refresh {
		return nil, ErrWrongKind
	}
	return claims, nil
}
