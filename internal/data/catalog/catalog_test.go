package catalog

import (
	"errors"
	"fmt"
	"testing"

	"gorm.io/gorm"

	"github.com/akolanti/docproc/internal/config"
)

func TestClampSimilarity(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.2, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.00001, 1},
	}
	for _, tt := range tests {
		if got := ClampSimilarity(tt.in); got != tt.want {
			t.Errorf("ClampSimilarity(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"wrapped gorm duplicated key", fmt.Errorf("creating user: %w", gorm.ErrDuplicatedKey), true},
		{"sqlstate text", errors.New(`ERROR: duplicate key value violates unique constraint "uni_users_email" (SQLSTATE 23505)`), true},
		{"unrelated error", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isUniqueViolation(tt.err); got != tt.want {
				t.Errorf("isUniqueViolation(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestGenerateAPIKey(t *testing.T) {
	first := generateAPIKey()
	second := generateAPIKey()

	if len(first) < config.APIKeyMinLength {
		t.Errorf("key length %d below minimum %d", len(first), config.APIKeyMinLength)
	}
	if first == second {
		t.Error("two generated keys should not collide")
	}
	for _, r := range first {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f') {
			t.Fatalf("key %q contains a non-hex character %q", first, r)
		}
	}
}
