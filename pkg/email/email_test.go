package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ann@example.com", Normalize("  Ann@Example.COM \t"))
	assert.Equal(t, "", Normalize("   "))
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"ann@example.com", true},
		{"ann.b+legacy@mail.example.org", true},
		{"", false},
		{"ann", false},
		{"@example.com", false},
		{"Ann <ann@example.com>", false},
		{"ann@", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.in))
		})
	}
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "a***@example.com", Redact("ann@example.com"))
	assert.Equal(t, "***", Redact("nope"))
	assert.Equal(t, "ann", LocalPart("ann@example.com"))
}
