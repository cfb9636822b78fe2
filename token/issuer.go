package token

import (
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/greenwood-edu/lostfound-auth/users"
)

// Claims carries the identity of the authenticated principal inside the
// signed access token. The profile fields let clients rebuild a session
// snapshot without an extra round-trip.
type Claims struct {
	Username    string     `json:"username"`
	DisplayName string     `json:"name,omitempty"`
	Email       string     `json:"email,omitempty"`
	Role        users.Role `json:"role"`
	jwtlib.RegisteredClaims
}

// User reconstructs the profile embedded in the claims.
func (c *Claims) User() *users.User {
	return &users.User{
		ID:          c.Subject,
		Username:    c.Username,
		DisplayName: c.DisplayName,
		Email:       c.Email,
		Role:        c.Role,
	}
}

// Issuer mints and verifies HS256-signed access tokens.
type Issuer struct {
	secret  []byte
	issuer  string
	expiry  time.Duration
	nowTime func() time.Time // nowTime function (injectable for testing)
}

// IssuerOption defines a function type to modify the Issuer instance.
type IssuerOption func(*Issuer)

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.nowTime = nowFunc
	}
}

func NewIssuer(secret []byte, issuer string, expiry time.Duration, options ...IssuerOption) *Issuer {
	i := &Issuer{
		secret:  secret,
		issuer:  issuer,
		expiry:  expiry,
		nowTime: time.Now,
	}
	for _, opt := range options {
		opt(i)
	}
	return i
}

// Mint creates a signed access token for the user. Every token carries a
// unique jti so it can be individually revoked or rotated.
func (i *Issuer) Mint(user *users.User) (string, *Claims, error) {
	now := i.nowTime()
	claims := &Claims{
		Username:    user.Username,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Role:        user.Role,
		RegisteredClaims: jwtlib.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(now.Add(i.expiry)),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, errors.Wrap(err, "[Issuer.Mint] sign")
	}
	return signed, claims, nil
}

// Verify parses and validates a token, rejecting expired ones with
// TokenExpiredErr so callers can route them to the refresh path.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	return i.parse(raw)
}

// VerifyAllowExpired validates the signature but accepts an expired token.
// Only the refresh endpoint should use this.
func (i *Issuer) VerifyAllowExpired(raw string) (*Claims, error) {
	return i.parse(raw, jwtlib.WithoutClaimsValidation())
}

func (i *Issuer) parse(raw string, parserOpts ...jwtlib.ParserOption) (*Claims, error) {
	parserOpts = append(parserOpts,
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(i.nowTime),
	)
	claims := &Claims{}
	_, err := jwtlib.ParseWithClaims(raw, claims, func(*jwtlib.Token) (interface{}, error) {
		return i.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwtlib.ErrTokenExpired) {
			return nil, TokenExpiredErr
		}
		return nil, InvalidTokenErr
	}
	if !claims.Role.Valid() {
		return nil, InvalidTokenErr
	}
	return claims, nil
}
