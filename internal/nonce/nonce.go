// Package nonce issues and verifies the short-lived anti-forgery tokens that
// guard the on-demand random product action.
package nonce

import (
	"errors"
	"fmt"
	"time"

	"catalog/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Action is the only action nonces are issued for.
	Action = "catalog_get_random"

	issuer     = "catalog"
	DefaultTTL = 12 * time.Hour
)

// ErrEmptySecret is returned when no signing secret is configured.
var ErrEmptySecret = errors.New("nonce secret must not be empty")

var errInvalidNonce = apperr.New(apperr.KindAuthFailed, "Security check failed.")

type claims struct {
	Action string `json:"act"`
	jwt.RegisteredClaims
}

type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(secret string, ttl time.Duration) (*Manager, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a signed token for Action.
func (m *Manager) Issue() (string, error) {
	now := m.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Action: Action,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign nonce: %w", err)
	}
	return signed, nil
}

// Verify returns an AuthFailed error for a missing, malformed, forged or
// expired token.
func (m *Manager) Verify(token string) error {
	if token == "" {
		return errInvalidNonce
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return apperr.Wrap(apperr.KindAuthFailed, errInvalidNonce.Error(), err)
	}
	if c.Action != Action {
		return errInvalidNonce
	}
	return nil
}
