// Package email normalizes and validates the email addresses used as identity keys.
package email

import (
	"net/mail"
	"strings"
)

const maxLength = 254

// Normalize trims surrounding whitespace and lowercases the address.
// Identity matching is case-insensitive, so every store key goes through here.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// IsValid reports whether address is a bare addr-spec with a domain part.
// Display-name forms ("Ann <ann@example.com>") are rejected.
func IsValid(address string) bool {
	if address == "" || len(address) > maxLength {
		return false
	}
	parsed, err := mail.ParseAddress(address)
	if err != nil || parsed.Address != address {
		return false
	}
	at := strings.LastIndexByte(address, '@')
	return at > 0 && at < len(address)-1
}

// LocalPart returns the portion before the last '@', used for log redaction.
func LocalPart(address string) string {
	if at := strings.LastIndexByte(address, '@'); at > 0 {
		return address[:at]
	}
	return address
}

// Redact keeps the first character of the local part and the full domain.
func Redact(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at <= 0 {
		return "***"
	}
	return address[:1] + "***" + address[at:]
}
