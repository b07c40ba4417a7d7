// Package events implements the Event Streamer (§4.8): a passive,
// unbuffered sink that turns ExecutionEvents into newline-delimited JSON
// frames, writing one UTF-8 line per event as soon as it arrives, with an
// optional fan-out onto a Kafka topic for external observers.
//
// Grounded on stream_agents.go's SSE "data: <line>\n\n" write-and-flush
// loop — the frame-per-line discipline is the same, adapted from
// <think>-tag text chunks to JSON StreamFrame lines.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"taskforge/internal/model"
)

// Flusher is satisfied by http.Flusher; kept as a narrow interface so the
// streamer doesn't import net/http.
type Flusher interface {
	Flush()
}

// LineWriter writes one newline-delimited JSON StreamFrame per
// ExecutionEvent to w, flushing (if w supports it) after every write. It
// is passive: it never buffers or reorders, and a slow writer simply
// blocks the caller that emits the event (§5: "the streamer applies no
// backpressure policy of its own; a stalled client backs up the node that
// is currently emitting").
type LineWriter struct {
	mu      sync.Mutex
	w       io.Writer
	flusher Flusher
	log     zerolog.Logger
}

// NewLineWriter builds a LineWriter over w. flusher may be nil when w does
// not support incremental flushing (e.g. a plain *bytes.Buffer in tests).
func NewLineWriter(w io.Writer, flusher Flusher, log zerolog.Logger) *LineWriter {
	return &LineWriter{w: w, flusher: flusher, log: log}
}

func toFrame(e model.ExecutionEvent) model.StreamFrame {
	mode := model.ModeTask
	switch e.Phase {
	case model.PhaseChatReply:
		mode = model.ModeChat
	case model.PhaseSystemError, model.PhaseNodeError:
		mode = model.ModeError
	}
	return model.StreamFrame{
		Mode:      mode,
		Status:    e.Status,
		Step:      string(e.Phase),
		Message:   e.Message,
		Data:      e.Data,
		Timestamp: e.Timestamp,
	}
}

// Emit implements executor.EventSink: it marshals e as a StreamFrame and
// writes exactly one line, then flushes.
func (l *LineWriter) Emit(e model.ExecutionEvent) {
	frame := toFrame(e)
	b, err := json.Marshal(frame)
	if err != nil {
		l.log.Error().Err(err).Str("phase", string(e.Phase)).Msg("event marshal failed")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := fmt.Fprintf(l.w, "%s\n", b); err != nil {
		l.log.Warn().Err(err).Msg("event write failed; client likely disconnected")
		return
	}
	if l.flusher != nil {
		l.flusher.Flush()
	}
}

// Publisher fans an event out to an external system (Kafka) without
// affecting the primary LineWriter stream. A Publisher failure is logged
// and otherwise ignored — the inline stream is authoritative.
type Publisher interface {
	Publish(ctx context.Context, e model.ExecutionEvent) error
}

// TeeSink emits to a LineWriter and, best-effort, to a Publisher.
type TeeSink struct {
	Primary   *LineWriter
	Publisher Publisher
	ctx       context.Context
	log       zerolog.Logger
}

// NewTeeSink builds a TeeSink. publisher may be nil to disable fan-out.
func NewTeeSink(ctx context.Context, primary *LineWriter, publisher Publisher, log zerolog.Logger) *TeeSink {
	return &TeeSink{Primary: primary, Publisher: publisher, ctx: ctx, log: log}
}

func (t *TeeSink) Emit(e model.ExecutionEvent) {
	t.Primary.Emit(e)
	if t.Publisher == nil {
		return
	}
	if err := t.Publisher.Publish(t.ctx, e); err != nil {
		t.log.Warn().Err(err).Str("phase", string(e.Phase)).Msg("kafka fan-out failed")
	}
}
