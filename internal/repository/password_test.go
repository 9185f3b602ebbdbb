package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse battery staple", hash, "hash must never equal the plaintext")
	assert.True(t, VerifyPassword(hash, "correct horse battery staple"))
	assert.False(t, VerifyPassword(hash, "wrong password"))
	assert.False(t, VerifyPassword(hash, "correct horse battery stapl"))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestHashPasswordDefaultCost(t *testing.T) {
	hash, err := HashPassword("secret", 0)
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost)
}

func TestVerifyPasswordNeverPanics(t *testing.T) {
	assert.False(t, VerifyPassword("", "secret"), "missing hash verifies as false")
	assert.False(t, VerifyPassword("not-a-bcrypt-hash", "secret"))

	hash, err := HashPassword("secret", bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, VerifyPassword(hash, ""), "empty plaintext verifies as false")
}
