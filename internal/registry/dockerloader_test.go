package registry

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWrapSynthesizedSourceEmbedsBodyAndCallsByName(t *testing.T) {
	body := "func greet(args map[string]any) (any, error) {\n\treturn map[string]any{\"result\": \"hi\"}, nil\n}\n"
	out := wrapSynthesizedSource("greet", body)
	assert.True(t, strings.Contains(out, "package main"))
	assert.True(t, strings.Contains(out, body))
	assert.True(t, strings.Contains(out, "greet(args)"))
}

func TestNewDockerLoaderAppliesDefaults(t *testing.T) {
	l := NewDockerLoader("", 0)
	assert.Equal(t, "code-sandbox", l.image)
	assert.Equal(t, 60*time.Second, l.timeout)
}
