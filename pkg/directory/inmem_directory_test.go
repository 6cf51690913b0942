package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDirectory(t *testing.T) *InMemDirectory {
	t.Helper()
	dir := NewInMemDirectory()
	require.NoError(t, dir.AddAccount(Profile{
		UserID:   "user-1",
		Email:    "User@Example.com",
		FullName: "Test User",
	}, "correct-horse"))
	return dir
}

func TestVerifyCredentials(t *testing.T) {
	dir := newTestDirectory(t)

	profile, err := dir.VerifyCredentials(context.Background(), "user@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "user-1", profile.UserID)
	assert.Equal(t, "user@example.com", profile.Email)
}

func TestVerifyCredentialsNormalizesEmail(t *testing.T) {
	dir := newTestDirectory(t)

	_, err := dir.VerifyCredentials(context.Background(), "  USER@example.COM ", "correct-horse")
	assert.NoError(t, err)
}

func TestWrongPasswordAndUnknownEmailIndistinguishable(t *testing.T) {
	dir := newTestDirectory(t)
	ctx := context.Background()

	_, wrongPassword := dir.VerifyCredentials(ctx, "user@example.com", "wrong")
	_, unknownEmail := dir.VerifyCredentials(ctx, "nobody@example.com", "correct-horse")

	require.Error(t, wrongPassword)
	require.Error(t, unknownEmail)
	assert.ErrorIs(t, wrongPassword, ErrCredentialsInvalid)
	assert.ErrorIs(t, unknownEmail, ErrCredentialsInvalid)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
}

func TestGetProfile(t *testing.T) {
	dir := newTestDirectory(t)

	profile, err := dir.GetProfile(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Test User", profile.FullName)

	_, err = dir.GetProfile(context.Background(), "user-2")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}
