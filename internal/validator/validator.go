// Package validator provides input validation and sanitization for
// campaign and lead data before it reaches the database or an
// outgoing message header.
package validator

import (
	"errors"
	"net/mail"
	"strings"
	"unicode/utf8"
)

// Validation errors
var (
	ErrInvalidEmail = errors.New("invalid email format")
	ErrInputTooLong = errors.New("input exceeds maximum length")
	ErrEmptyInput   = errors.New("input cannot be empty")
)

// Length limits. Email length follows RFC 5321; the rest match the
// column sizes in the models package.
const (
	MaxEmailLength        = 254
	MaxLeadNameLength     = 120
	MaxCampaignNameLength = 200
	MaxSubjectLength      = 255
)

// ValidateEmail validates email address format according to RFC 5322.
// Returns nil if valid, or an appropriate error.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))

	if email == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(email) > MaxEmailLength {
		return ErrInputTooLong
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ErrInvalidEmail
	}
	return nil
}

// NormalizeEmail lowercases and trims an address so dedupe and
// reply matching compare the same representation everywhere.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// ValidateCampaignName checks a campaign name for presence and length.
func ValidateCampaignName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(name) > MaxCampaignNameLength {
		return ErrInputTooLong
	}
	return nil
}

// ValidateSubjectTemplate checks a step subject template for presence
// and length before the campaign is stored.
func ValidateSubjectTemplate(subject string) error {
	if strings.TrimSpace(subject) == "" {
		return ErrEmptyInput
	}
	if utf8.RuneCountInString(subject) > MaxSubjectLength {
		return ErrInputTooLong
	}
	return nil
}

// SanitizeHeaderValue strips CR and LF so lead-supplied values can
// never inject additional headers into an assembled message.
func SanitizeHeaderValue(value string) string {
	value = strings.ReplaceAll(value, "\r", "")
	value = strings.ReplaceAll(value, "\n", " ")
	return strings.TrimSpace(value)
}

// SanitizeString removes control characters, trims whitespace and
// enforces a rune length limit when maxLength is positive.
func SanitizeString(input string, maxLength int) string {
	input = strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)

	input = strings.TrimSpace(input)

	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}
	return input
}

// Pagination constants
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ValidatePagination validates and sanitizes pagination parameters.
// Returns sanitized limit and offset values.
func ValidatePagination(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
