package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeValidation, "phone is required")
		assert.True(t, HasCode(err, CodeValidation))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("create contact: %w", New(CodeNotFound, "contact not found"))
		assert.True(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches inner code of nested domain errors", func(t *testing.T) {
		inner := New(CodeAlreadyConfirmed, "already confirmed")
		err := Wrap(inner, CodeConflict, "confirm failed")
		assert.True(t, HasCode(err, CodeConflict))
		assert.True(t, HasCode(err, CodeAlreadyConfirmed))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeRoleNotPermitted, CodeOf(New(CodeRoleNotPermitted, "x")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
}

func TestErrorString(t *testing.T) {
	err := Wrap(errors.New("db down"), CodeInternal, "failed to load person")
	assert.Equal(t, "internal_error: failed to load person: db down", err.Error())
	assert.ErrorContains(t, New(CodeNotFound, "missing"), "not_found: missing")
}

func TestErrorsIsMatchesCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeUnauthorized, "token has expired"))
	assert.ErrorIs(t, err, New(CodeUnauthorized, "any message"))
	assert.NotErrorIs(t, err, New(CodeForbidden, "token has expired"))
}
