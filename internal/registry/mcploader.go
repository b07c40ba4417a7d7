package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	mcppkg "github.com/modelcontextprotocol/go-sdk/mcp"
)

// MCPLoader resolves builtIn tools that are themselves proxies for a tool
// exposed by an external MCP server, connected over stdio. A record whose
// SourceText is the server command line (e.g. "npx @my/mcp-server") is
// compiled into a Handle that, on every Invoke, starts the server, opens a
// new session, dispatches CallTool by name, and closes the session.
//
// Grounded on internal/mcpclient/mcpclient.go's Manager: the same
// NewClient/CommandTransport/Connect/CallTool sequence, narrowed from a
// whole-server registration sweep down to a single named tool per Handle.
type MCPLoader struct {
	clientName    string
	clientVersion string
}

// NewMCPLoader builds a Loader identifying itself to MCP servers as
// clientName/clientVersion (mirroring mcpclient.go's
// mcppkg.Implementation{Name: "manifold", Version: version.Version}).
func NewMCPLoader(clientName, clientVersion string) *MCPLoader {
	return &MCPLoader{clientName: clientName, clientVersion: clientVersion}
}

// Load treats sourceText as "<command> [args...]" for an MCP server
// reachable over stdio, and name as the tool to invoke on it.
func (l *MCPLoader) Load(name, sourceText string) (Handle, error) {
	cmd, args, err := splitCommandLine(sourceText)
	if err != nil {
		return nil, fmt.Errorf("mcp loader: %s: %w", name, err)
	}

	client := mcppkg.NewClient(&mcppkg.Implementation{Name: l.clientName, Version: l.clientVersion}, nil)

	return HandleFunc(func(ctx context.Context, callArgs map[string]any) (any, error) {
		session, err := client.Connect(ctx, &mcppkg.CommandTransport{Command: exec.CommandContext(ctx, cmd, args...)}, nil)
		if err != nil {
			return nil, fmt.Errorf("mcp connect %s: %w", name, err)
		}
		defer session.Close()

		res, err := session.CallTool(ctx, &mcppkg.CallToolParams{Name: name, Arguments: callArgs})
		if err != nil {
			return nil, fmt.Errorf("mcp call %s: %w", name, err)
		}

		texts := make([]string, 0, len(res.Content))
		for _, c := range res.Content {
			if tc, ok := c.(*mcppkg.TextContent); ok {
				texts = append(texts, tc.Text)
			}
		}
		if len(texts) == 1 {
			var decoded any
			if json.Unmarshal([]byte(texts[0]), &decoded) == nil {
				return decoded, nil
			}
			return map[string]any{"result": texts[0]}, nil
		}
		return map[string]any{"result": texts}, nil
	}), nil
}

func splitCommandLine(s string) (string, []string, error) {
	if s == "" {
		return "", nil, fmt.Errorf("empty command")
	}
	fields := splitFields(s)
	return fields[0], fields[1:], nil
}

func splitFields(s string) []string {
	var out []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
