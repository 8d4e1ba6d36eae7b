package tracking

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"checkout-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		in    string
		want  string
	}{
		{"email trimmed and lowercased", FieldEmail, "  Jane.Doe@Example.COM ", "jane.doe@example.com"},
		{"phone digits only", FieldPhone, "+880 (17) 1234-5678", "8801712345678"},
		{"city drops spaces", FieldCity, " New York ", "newyork"},
		{"zip drops spaces", FieldZipCode, "SW1A 1AA", "sw1a1aa"},
		{"state lowercased", FieldState, "NY", "ny"},
		{"blank stays blank", FieldFirstName, "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.field, tt.in))
		})
	}
}

func TestHash(t *testing.T) {
	assert.Equal(t, sha("jane@example.com"), Hash(FieldEmail, " JANE@example.com"))
	assert.Equal(t, Hash(FieldPhone, "+1 555 0100"), Hash(FieldPhone, "15550100"))
	assert.Empty(t, Hash(FieldEmail, ""))
	assert.Empty(t, Hash(FieldPhone, "n/a"))
}

func TestHashUser(t *testing.T) {
	user := &models.TrackingUser{
		UserID: "42",
		Email:  "Jane@Example.com",
		Phone:  "01712-345678",
		City:   "Dhaka City",
	}

	hashed := HashUser(user)

	assert.Len(t, hashed, 4)
	assert.Equal(t, sha("jane@example.com"), hashed["em"])
	assert.Equal(t, sha("01712345678"), hashed["ph"])
	assert.Equal(t, sha("dhakacity"), hashed["ct"])
	assert.Equal(t, sha("42"), hashed["external_id"])
	assert.NotContains(t, hashed, "fn")

	for _, v := range hashed {
		assert.Len(t, v, 64)
	}

	assert.Empty(t, HashUser(nil))
}
