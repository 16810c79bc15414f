package auth

import (
	"testing"
	"time"

	"catalog/internal/nonce"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdminToken_RoundTrip(t *testing.T) {
	token, err := IssueAdminToken("secret", "ops", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := ParseAdminToken("secret", token)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)
	assert.Equal(t, jwt.ClaimStrings{Audience}, claims.Audience)
}

func TestIssueAdminToken_RequiresSecretAndSubject(t *testing.T) {
	_, err := IssueAdminToken("", "ops", time.Hour, time.Now())
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = IssueAdminToken("secret", "", time.Hour, time.Now())
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestParseAdminToken_Rejects(t *testing.T) {
	valid, err := IssueAdminToken("secret", "ops", time.Hour, time.Now())
	require.NoError(t, err)
	expired, err := IssueAdminToken("secret", "ops", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	nonces, err := nonce.NewManager("secret", time.Hour)
	require.NoError(t, err)
	widgetNonce, err := nonces.Issue()
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   "ops",
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := map[string]struct {
		secret string
		token  string
	}{
		"garbage":      {"secret", "not.a.token"},
		"wrong secret": {"other", valid},
		"expired":      {"secret", expired},
		"widget nonce": {"secret", widgetNonce},
		"alg none":     {"secret", unsigned},
		"empty secret": {"", valid},
	}
	for name, tc := range cases {
		_, err := ParseAdminToken(tc.secret, tc.token)
		assert.Error(t, err, name)
	}
}
