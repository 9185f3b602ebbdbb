package service

import (
	"errors"
	"strconv"
	"time"

	"backend/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	// ErrTokenMissing means no token was presented at all.
	ErrTokenMissing = errors.New("authentication token missing")
	// ErrTokenMalformed covers garbled tokens, bad signatures and tokens of
	// the wrong type.
	ErrTokenMalformed = errors.New("authentication token invalid")
	ErrTokenExpired   = errors.New("authentication token expired")
	// ErrTokenRevoked is reserved for a revocation store; nothing produces it
	// yet.
	ErrTokenRevoked = errors.New("authentication token revoked")
)

// TokenService mints and validates the signed bearer tokens. Validation is
// stateless: role checks against the current user record happen in the
// authorization middleware, not here.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueAccessToken mints a short-lived access token for the user.
func (s *TokenService) IssueAccessToken(userID int64) (string, error) {
	return s.issue(userID, TokenTypeAccess, s.accessTTL)
}

// IssueRefreshToken mints a longer-lived refresh token for the user.
func (s *TokenService) IssueRefreshToken(userID int64) (string, error) {
	return s.issue(userID, TokenTypeRefresh, s.refreshTTL)
}

func (s *TokenService) issue(userID int64, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &models.Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate checks the token signature, expiry and type, and returns the
// subject user id.
func (s *TokenService) Validate(tokenString, wantType string) (int64, error) {
	if tokenString == "" {
		return 0, ErrTokenMissing
	}

	claims := &models.Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, ErrTokenExpired
		}
		return 0, ErrTokenMalformed
	}
	if !token.Valid || claims.TokenType != wantType {
		return 0, ErrTokenMalformed
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, ErrTokenMalformed
	}
	return userID, nil
}
