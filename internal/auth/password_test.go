package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordPolicyValidate(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8}

	tests := []struct {
		name       string
		password   string
		violations int
	}{
		{name: "acceptable", password: "Sup3rsecret", violations: 0},
		{name: "too short", password: "Ab1", violations: 1},
		{name: "missing uppercase", password: "sup3rsecret", violations: 1},
		{name: "missing lowercase", password: "SUP3RSECRET", violations: 1},
		{name: "missing digit", password: "Supersecret", violations: 1},
		{name: "short and weak", password: "abc", violations: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := policy.Validate(tt.password)
			assert.Len(t, violations, tt.violations)
		})
	}
}

func TestPasswordPolicyRejectsOverlongPassword(t *testing.T) {
	policy := PasswordPolicy{MinLength: 8}

	long := "Aa1" + string(make([]byte, 80))
	violations := policy.Validate(long)
	assert.NotEmpty(t, violations)
}

func TestPasswordHasherVerify(t *testing.T) {
	hasher := NewPasswordHasher(bcryptTestCost)

	hash, err := hasher.Hash("Sup3rsecret")
	require.NoError(t, err)
	require.NotEqual(t, "Sup3rsecret", hash)

	assert.True(t, hasher.Verify(hash, "Sup3rsecret"))
	assert.False(t, hasher.Verify(hash, "sup3rsecret"))
	assert.False(t, hasher.Verify(hash, ""))
}

// bcryptTestCost keeps hashing fast in tests.
const bcryptTestCost = 4
