package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

// Codec issues and verifies signed, time-limited tokens carrying an
// arbitrary string payload. Tokens are opaque to callers; tampering or
// signing with a different secret fails verification.
type Codec struct {
	secret []byte
}

func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

type payloadClaims struct {
	Payload map[string]string `json:"payload"`
	jwt.RegisteredClaims
}

// Issue signs the payload into a token valid for ttl.
func (c *Codec) Issue(payload map[string]string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &payloadClaims{
		Payload: payload,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify checks the signature and expiry and returns the payload.
func (c *Codec) Verify(tokenString string) (map[string]string, error) {
	return c.parse(tokenString)
}

// VerifyIgnoreExpiry checks the signature but accepts expired tokens.
// Used only by the resend flow, so an expired registration intent can
// still be read for re-issuance.
func (c *Codec) VerifyIgnoreExpiry(tokenString string) (map[string]string, error) {
	return c.parse(tokenString, jwt.WithoutClaimsValidation())
}

func (c *Codec) parse(tokenString string, opts ...jwt.ParserOption) (map[string]string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &payloadClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*payloadClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims.Payload, nil
}

// SessionClaims is the payload of a bearer session token.
type SessionClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// IssueSession generates a bearer session token for the given account.
// Sessions are stateless: there is no revocation list, deleted accounts
// are caught by the store lookup during authentication.
func IssueSession(userID uint, email, secret string, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ValidateSession parses and validates a bearer session token.
func ValidateSession(tokenString, secret string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrTokenInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}
