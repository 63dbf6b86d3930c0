package stream

import (
	"fmt"
	"io"

	json "github.com/goccy/go-json"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

// doneSentinel terminates every event stream.
const doneSentinel = "[DONE]"

// SSEWriter writes `data:` events and flushes after each one.
type SSEWriter struct {
	w     io.Writer
	flush func()
}

// NewSSEWriter wraps w. flush may be nil.
func NewSSEWriter(w io.Writer, flush func()) *SSEWriter {
	return &SSEWriter{w: w, flush: flush}
}

// Event marshals v as one event.
func (s *SSEWriter) Event(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.raw(b)
}

// Done writes the terminating sentinel.
func (s *SSEWriter) Done() error { return s.raw([]byte(doneSentinel)) }

func (s *SSEWriter) raw(b []byte) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	if s.flush != nil {
		s.flush()
	}
	return nil
}

// Framer shapes chunks and the outcome into wire frames.
type Framer interface {
	Chunk(generate.Chunk) any
	Final(generate.Outcome) any
}

// SSE is a Sink writing one event per chunk, a final frame carrying the finish
// reason (or an error frame when the generation failed) and the sentinel.
type SSE struct {
	w *SSEWriter
	f Framer
}

func NewSSE(w *SSEWriter, f Framer) *SSE { return &SSE{w: w, f: f} }

func (s *SSE) Chunk(c generate.Chunk) error { return s.w.Event(s.f.Chunk(c)) }

func (s *SSE) Finish(o generate.Outcome) error {
	var frame any = s.f.Final(o)
	if o.Reason == generate.Failed && o.Err != nil {
		frame = types.ErrorResponse{Error: ErrorDetail(o.Err)}
	}
	if err := s.w.Event(frame); err != nil {
		return err
	}
	return s.w.Done()
}
