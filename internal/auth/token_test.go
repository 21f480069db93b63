package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenService_RoundTrip(t *testing.T) {
	svc := NewTokenService("test-secret", "campusflow")

	token, err := svc.Issue("user-1", "Dr. Rao", "hod", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "Dr. Rao", claims.UserName)
	assert.Equal(t, "hod", claims.Role)
	assert.Equal(t, "campusflow", claims.Issuer)
}

func TestTokenService_Verify_Errors(t *testing.T) {
	svc := NewTokenService("test-secret", "campusflow")

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "garbage token",
			token: func(t *testing.T) string {
				return "not.a.token"
			},
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				other := NewTokenService("different-secret", "campusflow")
				token, err := other.Issue("user-1", "Dr. Rao", "hod", time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				other := NewTokenService("test-secret", "someone-else")
				token, err := other.Issue("user-1", "Dr. Rao", "hod", time.Hour)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "expired token",
			token: func(t *testing.T) string {
				token, err := svc.Issue("user-1", "Dr. Rao", "hod", -time.Minute)
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "missing actor claims",
			token: func(t *testing.T) string {
				token, err := svc.Issue("", "Dr. Rao", "", time.Hour)
				require.NoError(t, err)
				return token
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Verify(tt.token(t))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidToken), "expected ErrInvalidToken, got %v", err)
		})
	}
}
