package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestIssueAndVerify_RoundTrip(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("super-secret", time.Hour)
	userID := primitive.NewObjectID()

	tok, err := issuer.Issue(userID, "alice")
	require.NoError(t, err)

	id, err := issuer.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, userID, id.UserID)
}

func TestVerify_Expired(t *testing.T) {
	t.Parallel()

	issuer := NewTokenIssuer("secret", -time.Second)
	tok, err := issuer.Issue(primitive.NewObjectID(), "bob")
	require.NoError(t, err)

	_, err = issuer.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := NewTokenIssuer("right-secret", time.Hour).Issue(primitive.NewObjectID(), "carol")
	require.NoError(t, err)

	_, err = NewTokenIssuer("wrong-secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_MalformedSubject(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-an-object-id",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := tok.SignedString(secret)
	require.NoError(t, err)

	_, err = NewTokenIssuer(string(secret), time.Hour).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIdentityFrom(t *testing.T) {
	t.Parallel()

	_, ok := IdentityFrom(context.Background())
	assert.False(t, ok)

	want := Identity{UserID: primitive.NewObjectID()}
	got, ok := IdentityFrom(WithIdentity(context.Background(), want))
	assert.True(t, ok)
	assert.Equal(t, want, got)
}
