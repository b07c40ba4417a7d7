package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsTransientTrueForWrappedCatalogSave(t *testing.T) {
	wrapped := fmt.Errorf("save: %w", ErrCatalogSave)
	assert.True(t, IsTransient(wrapped))
}

func TestIsTransientFalseForOtherErrors(t *testing.T) {
	assert.False(t, IsTransient(ErrUnknownTool))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("boom")))
}
