package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"taskforge/internal/model"
)

// DockerLoader compiles a synthesized tool's source text into a callable
// Handle by running it inside the same code-sandbox container the teacher's
// internal/agents/codeeval.go RunGoInContainer used for arbitrary Go
// execution: the synthesized function body is wrapped in a throwaway
// main.go that reads its call arguments as JSON on stdin and writes its
// result as JSON on stdout, then `go run` compiles and runs it in one shot
// per invocation.
type DockerLoader struct {
	image   string
	timeout time.Duration
}

// NewDockerLoader builds a Loader targeting the named sandbox image
// (RunGoInContainer's "code-sandbox" by default) with a per-invocation
// timeout.
func NewDockerLoader(image string, timeout time.Duration) *DockerLoader {
	if image == "" {
		image = "code-sandbox"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DockerLoader{image: image, timeout: timeout}
}

// Load treats sourceText as a complete top-level Go function declaration
// named name with the signature `func name(args map[string]any) (any, error)` (exactly what
// internal/synth.Emit produces) and returns a Handle that compiles and runs
// it fresh, inside the sandbox container, on every Invoke.
func (d *DockerLoader) Load(name, sourceText string) (Handle, error) {
	return HandleFunc(func(ctx context.Context, args map[string]any) (any, error) {
		tempDir, err := os.MkdirTemp("", "taskforge_synth_")
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrLoadTool, name, err)
		}
		defer os.RemoveAll(tempDir)

		mainGo := wrapSynthesizedSource(name, sourceText)
		if err := os.WriteFile(filepath.Join(tempDir, "main.go"), []byte(mainGo), 0o644); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrLoadTool, name, err)
		}

		argsJSON, err := json.Marshal(args)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", model.ErrLoadTool, name, err)
		}

		runCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		cmd := exec.CommandContext(runCtx, "docker", "run", "--rm", "-i",
			"-v", tempDir+":/sandbox", d.image,
			"/bin/sh", "-c", "cd /sandbox && go mod init sandbox >/dev/null 2>&1 || true && go run main.go")
		cmd.Stdin = bytes.NewReader(argsJSON)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr
		if err := cmd.Run(); err != nil {
			return nil, fmt.Errorf("%w: %s: %v: %s", model.ErrLoadTool, name, err, stderr.String())
		}

		var result any
		if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
			return nil, fmt.Errorf("%w: %s: invalid sandbox result: %v", model.ErrLoadTool, name, err)
		}
		return result, nil
	}), nil
}

func wrapSynthesizedSource(name, sourceText string) string {
	return fmt.Sprintf(`package main

import (
	"encoding/json"
	"os"
)

%s

func main() {
	var args map[string]any
	if err := json.NewDecoder(os.Stdin).Decode(&args); err != nil {
		json.NewEncoder(os.Stdout).Encode(map[string]any{"error": err.Error()})
		return
	}
	result, err := %s(args)
	if err != nil {
		json.NewEncoder(os.Stdout).Encode(map[string]any{"error": err.Error()})
		return
	}
	json.NewEncoder(os.Stdout).Encode(result)
}
`, sourceText, name)
}
