package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleUser    = "user"
	RoleContact = "contact"
)

// Claims identify either a reporting user or a trusted contact. Owner is the
// user a contact belongs to.
type Claims struct {
	Role  string `json:"role"`
	Name  string `json:"name,omitempty"`
	Owner string `json:"owner,omitempty"`
	jwt.RegisteredClaims
}

// Identity returns the subject.
func (c *Claims) Identity() string {
	return c.Subject
}

// Issuer signs and verifies HS256 bearer tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for subject.
func (i *Issuer) Issue(subject, role, name, owner string) (string, error) {
	claims := Claims{
		Role:  role,
		Name:  name,
		Owner: owner,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(i.now().Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(i.now()),
		},
	}
	if err := validate(&claims); err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Parse verifies tokenString and returns its claims.
func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(i.now))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if err := validate(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func validate(c *Claims) error {
	if c.Subject == "" {
		return fmt.Errorf("token subject is required")
	}
	switch c.Role {
	case RoleUser:
		return nil
	case RoleContact:
		if c.Owner == "" {
			return fmt.Errorf("contact token requires an owner")
		}
		return nil
	default:
		return fmt.Errorf("unknown role %q", c.Role)
	}
}
