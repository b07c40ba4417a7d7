// Package transport exposes the Executor over HTTP (§6): a synchronous
// JSON endpoint mirroring agents.go's runReActAgentHandler request/response
// shape, and a streaming SSE endpoint mirroring stream_agents.go's
// write-and-flush loop, framed with the Event Streamer's StreamFrame
// lines instead of <think> tags.
package transport

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"taskforge/internal/events"
	"taskforge/internal/executor"
	"taskforge/internal/model"
)

// Parser turns free text into a Plan, mirroring executor.Parser so the
// transport doesn't need to import the parser implementation directly.
type Parser = executor.Parser

// TaskRequest is the inbound payload for both /api/run and
// /api/run/stream.
type TaskRequest struct {
	Text     string   `json:"text"`
	ToolHint []string `json:"toolHint,omitempty"`
}

// TaskResponse is the aggregate JSON response for the synchronous
// endpoint.
type TaskResponse struct {
	PlanID        string            `json:"planId"`
	Success       bool              `json:"success"`
	FinalOutput   any               `json:"finalOutput"`
	NodeResults   []model.NodeOutput `json:"nodeResults,omitempty"`
	ExecutionTime string            `json:"executionTime"`
	Errors        []string          `json:"errors,omitempty"`
}

// Server wires the Executor and Parser to Echo routes.
type Server struct {
	Parser      Parser
	Executor    *executor.Executor
	Log         zerolog.Logger
	KafkaPub    events.Publisher
}

// NewServer builds a Server. kafkaPub may be nil to disable fan-out.
func NewServer(parser Parser, ex *executor.Executor, log zerolog.Logger, kafkaPub events.Publisher) *Server {
	return &Server{Parser: parser, Executor: ex, Log: log, KafkaPub: kafkaPub}
}

// Register attaches the routes to e.
func (s *Server) Register(e *echo.Echo) {
	e.POST("/api/run", s.runTaskSync)
	e.POST("/api/run/stream", s.runTaskStream)
}

func (s *Server) parsePlan(ctx context.Context, req TaskRequest) (*model.Plan, error) {
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		return nil, fmt.Errorf("%w: empty text", model.ErrMalformedPlan)
	}
	if s.Parser == nil {
		return &model.Plan{ID: uuid.NewString(), ChatOnly: true, UserText: req.Text}, nil
	}
	plan, err := s.Parser.Parse(ctx, req.Text, req.ToolHint)
	if err != nil {
		return nil, err
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	return plan, nil
}

// runTaskSync handles POST /api/run: parses text into a plan, runs it to
// completion, and returns the aggregate result as JSON (agents.go's
// runReActAgentHandler request/response shape).
func (s *Server) runTaskSync(c echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	ctx := c.Request().Context()
	plan, err := s.parsePlan(ctx, req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var collected []model.ExecutionEvent
	sink := executor.EventSinkFunc(func(e model.ExecutionEvent) { collected = append(collected, e) })
	result := s.Executor.Run(ctx, plan, sink)

	return c.JSON(http.StatusOK, TaskResponse{
		PlanID:        plan.ID,
		Success:       result.Success,
		FinalOutput:   result.FinalOutput,
		NodeResults:   result.NodeResults,
		ExecutionTime: result.ExecutionTime.String(),
		Errors:        result.Errors,
	})
}

// runTaskStream handles POST /api/run/stream: same parse step, but the
// Executor's events are written as they happen, one newline-delimited
// JSON StreamFrame per SSE "data:" frame, flushed immediately — the same
// discipline as stream_agents.go's write() helper.
func (s *Server) runTaskStream(c echo.Context) error {
	var req TaskRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}

	ctx := c.Request().Context()
	plan, err := s.parsePlan(ctx, req)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "streaming unsupported")
	}

	sseWriter := &ssePrefixWriter{w: c.Response()}
	lineWriter := events.NewLineWriter(sseWriter, flusher, s.Log)
	var sink executor.EventSink = lineWriter
	if s.KafkaPub != nil {
		sink = events.NewTeeSink(ctx, lineWriter, s.KafkaPub, s.Log)
	}

	start := time.Now()
	s.Executor.Run(ctx, plan, sink)
	s.Log.Info().Str("planId", plan.ID).Dur("elapsed", time.Since(start)).Msg("stream run complete")
	return nil
}

// ssePrefixWriter wraps every line written to it in the "data: <line>\n\n"
// framing stream_agents.go uses, so events.LineWriter can stay ignorant of
// SSE and just write JSON lines.
type ssePrefixWriter struct {
	w http.ResponseWriter
}

func (s *ssePrefixWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if _, err := fmt.Fprintf(s.w, "data: %s\n", line); err != nil {
			return 0, err
		}
	}
	if _, err := fmt.Fprint(s.w, "\n"); err != nil {
		return 0, err
	}
	return len(p), nil
}
