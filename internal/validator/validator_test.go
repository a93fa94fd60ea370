package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		wantErr error
	}{
		{"valid simple email", "test@example.com", nil},
		{"valid with subdomain", "user@mail.example.com", nil},
		{"valid with plus", "user+tag@example.com", nil},
		{"valid uppercase normalized", "TEST@EXAMPLE.COM", nil},
		{"valid with whitespace trimmed", "  test@example.com  ", nil},

		{"empty string", "", ErrEmptyInput},
		{"whitespace only", "   ", ErrEmptyInput},
		{"missing @", "testexample.com", ErrInvalidEmail},
		{"missing domain", "test@", ErrInvalidEmail},
		{"missing local part", "@example.com", ErrInvalidEmail},
		{"double @", "test@@example.com", ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateEmail_TooLong(t *testing.T) {
	longEmail := strings.Repeat("a", 250) + "@example.com"
	assert.ErrorIs(t, ValidateEmail(longEmail), ErrInputTooLong)
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "jane@acme.test", NormalizeEmail("  Jane@ACME.test "))
}

func TestValidateCampaignName(t *testing.T) {
	assert.NoError(t, ValidateCampaignName("Onboarding drip"))
	assert.ErrorIs(t, ValidateCampaignName("   "), ErrEmptyInput)
	assert.ErrorIs(t, ValidateCampaignName(strings.Repeat("x", MaxCampaignNameLength+1)), ErrInputTooLong)
}

func TestValidateSubjectTemplate(t *testing.T) {
	assert.NoError(t, ValidateSubjectTemplate("Welcome {{lead_name}}"))
	assert.ErrorIs(t, ValidateSubjectTemplate(""), ErrEmptyInput)
	assert.ErrorIs(t, ValidateSubjectTemplate(strings.Repeat("s", MaxSubjectLength+1)), ErrInputTooLong)
}

func TestSanitizeHeaderValue(t *testing.T) {
	assert.Equal(t, "Jane Doe", SanitizeHeaderValue("Jane\r\nDoe"))
	assert.Equal(t, "Bcc: evil@x.test", SanitizeHeaderValue("\r\nBcc: evil@x.test"))
	assert.Equal(t, "plain", SanitizeHeaderValue("plain"))
}

func TestSanitizeString(t *testing.T) {
	assert.Equal(t, "hello", SanitizeString("  hel\x00lo  ", 0))
	assert.Equal(t, "abc", SanitizeString("abcdef", 3))
	assert.Equal(t, "", SanitizeString("\x01\x02", 10))
}

func TestValidatePagination(t *testing.T) {
	limit, offset := ValidatePagination(0, -5)
	assert.Equal(t, DefaultLimit, limit)
	assert.Equal(t, 0, offset)

	limit, _ = ValidatePagination(500, 0)
	assert.Equal(t, MaxLimit, limit)

	limit, offset = ValidatePagination(50, 40)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 40, offset)
}
