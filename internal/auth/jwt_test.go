package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueParse(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)

	tok, err := iss.Issue(42)
	require.NoError(t, err)

	id, err := iss.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestParse_Rejects(t *testing.T) {
	iss := NewIssuer("secret", time.Hour)
	tok, err := iss.Issue(7)
	require.NoError(t, err)

	_, err = NewIssuer("other", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = iss.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewIssuer("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-time.Hour) }
	old, err := expired.Issue(7)
	require.NoError(t, err)
	_, err = iss.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_BadSubject(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Subject:   "abc",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewIssuer("secret", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
