package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskforge/internal/executor"
	"taskforge/internal/model"
	"taskforge/internal/registry"
	"taskforge/internal/synth"
)

func newTestServer() *Server {
	reg := registry.New(nil, nil)
	reg.RegisterBuiltIn("echoTool", "echoes its input", map[string]model.ParameterSchema{
		"text": {Type: "string", Required: true},
	}, nil, func(ctx context.Context, args map[string]any) (any, error) {
		return map[string]any{"result": args["text"]}, nil
	})
	ex := executor.New(reg, synth.TemplateBackend{}, nil)
	return NewServer(nil, ex, zerolog.Nop(), nil)
}

func TestRunTaskSyncChatOnlyWithoutParser(t *testing.T) {
	e := echo.New()
	s := newTestServer()
	s.Register(e)

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"text":"hello there"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":true`)
}

func TestRunTaskSyncRejectsEmptyText(t *testing.T) {
	e := echo.New()
	s := newTestServer()
	s.Register(e)

	req := httptest.NewRequest(http.MethodPost, "/api/run", strings.NewReader(`{"text":"   "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunTaskStreamWritesSSEFrames(t *testing.T) {
	e := echo.New()
	s := newTestServer()
	s.Register(e)

	req := httptest.NewRequest(http.MethodPost, "/api/run/stream", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "data: ")
	assert.Equal(t, "text/event-stream", rec.Header().Get(echo.HeaderContentType))
}
