package jwtauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanect/internal/session"
)

func TestVerifierRoundTrip(t *testing.T) {
	v := NewVerifier("secret")

	token, err := v.Sign("farmer-1", "", time.Minute)
	require.NoError(t, err)

	sess, err := v.VerifyToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "farmer-1", sess.UserID)
	assert.Equal(t, session.RoleUser, sess.Role)
}

func TestVerifierRejectsWrongSecret(t *testing.T) {
	token, err := NewVerifier("one").Sign("buyer-1", session.RoleAdmin, time.Minute)
	require.NoError(t, err)

	_, err = NewVerifier("two").VerifyToken(context.Background(), token)
	assert.Error(t, err)
}

func TestVerifierRejectsExpired(t *testing.T) {
	v := NewVerifier("secret")
	token, err := v.Sign("buyer-1", "", -time.Minute)
	require.NoError(t, err)

	_, err = v.VerifyToken(context.Background(), token)
	assert.Error(t, err)
}
