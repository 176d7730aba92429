package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smartmark/smartmark/internal/domain"
)

var ErrInvalidToken = errors.New("invalid or expired token")

const audience = "smartmark-api"

// Identity is the authenticated caller as asserted by the identity provider.
type Identity struct {
	ID        string `json:"id"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Profile converts the identity into the shape mirrored into local storage.
func (i Identity) Profile() domain.Profile {
	return domain.Profile{
		ID:        i.ID,
		Email:     i.Email,
		FullName:  i.FullName,
		AvatarURL: i.AvatarURL,
	}
}

// Claims is the JWT claim set issued by the identity provider after the
// OAuth exchange. The user id travels in the registered Subject claim.
type Claims struct {
	jwt.RegisteredClaims
	Email     string `json:"email,omitempty"`
	FullName  string `json:"full_name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// Verifier validates bearer tokens. Minting is the identity provider's job;
// the server only checks signatures and standard claims.
type Verifier struct {
	secret string
	issuer string
}

func NewVerifier(secret, issuer string) *Verifier {
	return &Verifier{secret: secret, issuer: issuer}
}

// Validate parses and validates a token string, returning the caller identity.
func (v *Verifier) Validate(tokenString string) (Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(v.secret), nil
	}, jwt.WithIssuer(v.issuer), jwt.WithAudience(audience))
	if err != nil {
		return Identity{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		ID:        claims.Subject,
		Email:     claims.Email,
		FullName:  claims.FullName,
		AvatarURL: claims.AvatarURL,
	}, nil
}

// MintToken creates a signed token for the given identity. Used by the
// dev-only token endpoint and by tests; production tokens come from the
// identity provider.
func MintToken(ident Identity, secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   ident.ID,
			Audience:  jwt.ClaimStrings{audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Email:     ident.Email,
		FullName:  ident.FullName,
		AvatarURL: ident.AvatarURL,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
