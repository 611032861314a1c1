package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHashAndCompare(t *testing.T) {
	req := require.New(t)
	password := "OpsAccess-Tr0pSûr!"

	hash, err := HashPassword(password)
	req.NoError(err)
	req.True(strings.HasPrefix(hash, "$argon2id$"))

	match, err := ComparePassword(password, hash)
	req.NoError(err)
	req.True(match)

	match, err = ComparePassword("WrongPassword1!", hash)
	req.NoError(err)
	req.False(match)
}

func TestTokenRoundTrip(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("a-test-signing-secret", time.Hour)

	token, err := manager.Generate("op-1", []string{"operator"})
	req.NoError(err)

	claims, err := manager.Validate(token)
	req.NoError(err)
	req.Equal("op-1", claims.UserID)
	req.Equal([]string{"operator"}, claims.Roles)

	// A token signed with a different secret must be rejected.
	other := NewTokenManager("another-secret", time.Hour)
	_, err = other.Validate(token)
	req.Error(err)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	req := require.New(t)
	manager := NewTokenManager("a-test-signing-secret", -time.Minute)

	token, err := manager.Generate("op-1", nil)
	req.NoError(err)

	_, err = manager.Validate(token)
	req.Error(err)
}

func TestNewPasswordValidation(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		req     LoginRequest
		wantErr bool
	}{
		{"Valid request", LoginRequest{"ops@example.com", "ComplexPass123!"}, false},
		{"Invalid email", LoginRequest{"notanemail", "ComplexPass123!"}, true},
		{"Password too short", LoginRequest{"ops@example.com", "Short1!"}, true},
		{"Missing digit", LoginRequest{"ops@example.com", "NoDigitPassword!"}, true},
		{"Missing special char", LoginRequest{"ops@example.com", "NoSpecialChar123"}, true},
		{"Missing uppercase", LoginRequest{"ops@example.com", "nouppercase123!!"}, true},
		{"Password too long (edge case)", LoginRequest{"ops@example.com", strings.Repeat("a", 73)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNewPassword(tt.req)
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}

func BenchmarkHashPassword(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, _ = HashPassword("A-very-long-and-complex-password-for-bench-123!")
	}
}
