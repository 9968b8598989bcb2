package auth

import (
	"fmt"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt silently truncates anything past 72 bytes, so longer inputs are rejected.
const maxPasswordLength = 72

type PasswordPolicy struct {
	MinLength int
}

// Validate returns one message per violated strength rule. An empty slice
// means the password is acceptable.
func (p PasswordPolicy) Validate(password string) []string {
	var violations []string

	if len(password) < p.MinLength {
		violations = append(violations, fmt.Sprintf("password must be at least %d characters", p.MinLength))
	}
	if len(password) > maxPasswordLength {
		violations = append(violations, fmt.Sprintf("password must be at most %d characters", maxPasswordLength))
	}

	var hasUpper, hasLower, hasDigit bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasDigit = true
		}
	}

	if !hasUpper {
		violations = append(violations, "password must contain an uppercase letter")
	}
	if !hasLower {
		violations = append(violations, "password must contain a lowercase letter")
	}
	if !hasDigit {
		violations = append(violations, "password must contain a digit")
	}

	return violations
}

type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify reports whether password matches the stored hash.
func (h *PasswordHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
