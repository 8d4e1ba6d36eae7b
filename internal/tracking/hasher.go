package tracking

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"checkout-service/internal/models"
)

// Field names a PII field. The value is the key used in ads-platform user_data.
type Field string

const (
	FieldEmail      Field = "em"
	FieldPhone      Field = "ph"
	FieldFirstName  Field = "fn"
	FieldLastName   Field = "ln"
	FieldCity       Field = "ct"
	FieldState      Field = "st"
	FieldZipCode    Field = "zp"
	FieldCountry    Field = "country"
	FieldExternalID Field = "external_id"
)

// Normalize applies the per-field canonical form that every destination
// hashes. Phone keeps digits only; city and zip drop whitespace; everything
// else is trimmed and lowercased.
func Normalize(field Field, value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return ""
	}

	switch field {
	case FieldPhone:
		return strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, v)
	case FieldCity, FieldZipCode:
		return strings.Map(func(r rune) rune {
			if unicode.IsSpace(r) {
				return -1
			}
			return unicode.ToLower(r)
		}, v)
	default:
		return strings.ToLower(v)
	}
}

// Hash returns the hex SHA-256 of the normalized value. Empty input, or input
// that normalizes to nothing, returns "" so the field is omitted.
func Hash(field Field, value string) string {
	normalized := Normalize(field, value)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// HashUser returns the hashed identity fields present on user, keyed by
// Field. Absent fields are not included.
func HashUser(user *models.TrackingUser) map[string]string {
	out := make(map[string]string)
	if user == nil {
		return out
	}

	fields := []struct {
		field Field
		value string
	}{
		{FieldEmail, user.Email},
		{FieldPhone, user.Phone},
		{FieldFirstName, user.FirstName},
		{FieldLastName, user.LastName},
		{FieldCity, user.City},
		{FieldState, user.State},
		{FieldZipCode, user.ZipCode},
		{FieldCountry, user.Country},
		{FieldExternalID, user.UserID},
	}
	for _, f := range fields {
		if h := Hash(f.field, f.value); h != "" {
			out[string(f.field)] = h
		}
	}
	return out
}
