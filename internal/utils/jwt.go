package utils // package utils provides helper functions for token creation and hashing

import (
    "crypto/sha256" // SHA-256 hashing for refresh tokens
    "encoding/hex"  // hex encoding of hashes
    "errors"
    "strconv"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/google/uuid"
)

// ErrInvalidToken is returned for any token that fails signature, expiry or
// claim checks.  Callers map it to 401 without further detail.
var ErrInvalidToken = errors.New("invalid token")

// AccessToken is a signed short-lived JWT together with its expiry.  It is
// sent as the accessToken cookie and accepted as a Bearer header.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// RefreshToken is a signed long-lived JWT.  Only its SHA-256 hash is stored
// on the user row, so a leaked database cannot mint sessions.
type RefreshToken struct {
    Raw string
    Exp time.Time
}

// AccessClaims are the claims carried by an access token.
type AccessClaims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// UserID returns the numeric subject.
func (c AccessClaims) UserID() (uint64, error) {
    return strconv.ParseUint(c.Subject, 10, 64)
}

// NewAccessToken signs an HS256 JWT with sub, role, exp and iat.
func NewAccessToken(secret string, userID uint64, role string, ttl time.Duration) (AccessToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := AccessClaims{
        Role: role,
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(userID, 10),
            ExpiresAt: jwt.NewNumericDate(exp),
            IssuedAt:  jwt.NewNumericDate(now),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken signs an HS256 JWT with sub, a random jti and exp.  The
// jti keeps tokens issued within the same second distinct.
func NewRefreshToken(secret string, userID uint64, ttl time.Duration) (RefreshToken, error) {
    now := time.Now().UTC()
    exp := now.Add(ttl)
    claims := jwt.RegisteredClaims{
        Subject:   strconv.FormatUint(userID, 10),
        ID:        uuid.NewString(),
        ExpiresAt: jwt.NewNumericDate(exp),
        IssuedAt:  jwt.NewNumericDate(now),
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{Raw: signed, Exp: exp}, nil
}

// ParseAccess verifies an access token and returns its claims.
func ParseAccess(secret, raw string) (AccessClaims, error) {
    var claims AccessClaims
    if err := parse(secret, raw, &claims); err != nil {
        return AccessClaims{}, err
    }
    if _, err := claims.UserID(); err != nil || claims.Role == "" {
        return AccessClaims{}, ErrInvalidToken
    }
    return claims, nil
}

// ParseRefresh verifies a refresh token and returns the user it belongs to.
func ParseRefresh(secret, raw string) (uint64, error) {
    var claims jwt.RegisteredClaims
    if err := parse(secret, raw, &claims); err != nil {
        return 0, err
    }
    id, err := strconv.ParseUint(claims.Subject, 10, 64)
    if err != nil {
        return 0, ErrInvalidToken
    }
    return id, nil
}

func parse(secret, raw string, claims jwt.Claims) error {
    tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
        return []byte(secret), nil
    }, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
    if err != nil || !tok.Valid {
        return ErrInvalidToken
    }
    return nil
}

// HashRefreshRaw returns the hex SHA-256 of a raw refresh token.
func HashRefreshRaw(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}
