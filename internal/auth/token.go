package auth

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// SessionTTL is the lifetime of every issued session token.
const SessionTTL = 24 * time.Hour

var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpired          = errors.New("token expired")
)

// SessionClaims is the payload of a session token. Subject holds the account
// id; ExpiresAt is always IssuedAt plus the codec TTL.
type SessionClaims struct {
	Username string `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *SessionClaims) AccountID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// TokenCodec issues and validates HS256 session tokens.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

type TokenOption func(*TokenCodec)

// WithClock overrides the wall clock used for issuing and validating.
func WithClock(now func() time.Time) TokenOption {
	return func(c *TokenCodec) {
		c.now = now
	}
}

func NewTokenCodec(secret []byte, ttl time.Duration, opts ...TokenOption) *TokenCodec {
	c := &TokenCodec{
		secret: append([]byte(nil), secret...),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c
}

// TTL returns the lifetime applied to issued tokens.
func (c *TokenCodec) TTL() time.Duration {
	return c.ttl
}

// Issue signs a token for the given account.
func (c *TokenCodec) Issue(accountID uuid.UUID, username string) (string, *SessionClaims, error) {
	issuedAt := c.now().Truncate(time.Second)

	claims := &SessionClaims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID.String(),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(c.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", nil, oops.Code("AUTH_TOKEN_SIGN_FAILED").Wrap(err)
	}

	return signed, claims, nil
}

// Validate checks the signature first and only then the expiry. The returned
// error is one of ErrMalformedToken, ErrInvalidSignature or ErrExpired.
func (c *TokenCodec) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}

	token, err := c.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		return nil, classifyTokenError(tokenString, err)
	}
	if !token.Valid {
		return nil, ErrInvalidSignature
	}

	if _, err := claims.AccountID(); err != nil {
		return nil, ErrMalformedToken
	}

	return claims, nil
}

func classifyTokenError(tokenString string, err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		if onlySignatureUndecodable(tokenString) {
			return ErrInvalidSignature
		}
		return ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		// Remaining claim failures (missing exp, bad nbf/iat) are treated as
		// structurally unusable tokens.
		return ErrMalformedToken
	}
}

// onlySignatureUndecodable reports a token whose header and payload are
// well-formed but whose signature segment is not canonical base64url.
func onlySignatureUndecodable(tokenString string) bool {
	parts := strings.Split(tokenString, ".")
	if len(parts) != 3 {
		return false
	}

	enc := base64.RawURLEncoding.Strict()
	for _, part := range parts[:2] {
		decoded, err := enc.DecodeString(part)
		if err != nil || !json.Valid(decoded) {
			return false
		}
	}

	_, err := enc.DecodeString(parts[2])
	return err != nil
}
