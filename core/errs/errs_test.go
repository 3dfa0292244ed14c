package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOfWrapped(t *testing.T) {
	base := errors.New("connection refused")
	err := fmt.Errorf("load projects: %w", External("odoo.projects", base))

	assert.Equal(t, KindExternal, KindOf(err))
	assert.True(t, Is(err, KindExternal))
	assert.False(t, Is(err, KindValidation))
	assert.ErrorIs(t, err, base)
}

func TestErrorMessageAndCode(t *testing.T) {
	err := Configuration("config", errors.New("telegram token is required"))
	assert.Equal(t, "config: telegram token is required", err.Error())
	assert.Equal(t, "CONFIGURATION", err.Code())

	bare := E(KindUnrecognized, "", nil)
	assert.Equal(t, "unrecognized", bare.Error())
}

func TestKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindExternal))
}
