package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCommandLineSeparatesArgs(t *testing.T) {
	cmd, args, err := splitCommandLine("npx @my/mcp-server --port 9000")
	assert.NoError(t, err)
	assert.Equal(t, "npx", cmd)
	assert.Equal(t, []string{"@my/mcp-server", "--port", "9000"}, args)
}

func TestSplitCommandLineRejectsEmpty(t *testing.T) {
	_, _, err := splitCommandLine("")
	assert.Error(t, err)
}
