package generate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"oxpilot/internal/model"
	"oxpilot/internal/sampler"
	"oxpilot/internal/tokenizer"
)

// Stream is the pull side of one generation. It is not safe for concurrent
// use, except that Outcome may be called from another goroutine.
type Stream struct {
	sess      model.Session
	smp       *sampler.Sampler
	dec       *tokenizer.Decoder
	eos       int
	window    int
	stops     []string
	maxTokens int
	log       zerolog.Logger

	history   []int
	nPrompt   int
	prefilled bool

	// held is decoded text that could still turn into a stop sequence.
	held    string
	ready   string
	emitted int

	mu sync.Mutex
	// generated is written by the pulling goroutine and read by Outcome.
	generated int
	done      bool
	outcome Outcome
	onClose []func()
	closed  bool
	started time.Time
}

// OnClose registers fn to run once when the stream ends or is closed.
func (s *Stream) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.onClose = append(s.onClose, fn)
	s.mu.Unlock()
}

// Next advances the stream until a chunk is available or the stream ends.
// It returns false once the outcome is known. A cancelled ctx ends the
// stream with StoppedByUser before another model step runs.
func (s *Stream) Next(ctx context.Context) (Chunk, bool) {
	if s.started.IsZero() {
		s.started = time.Now()
	}
	for {
		if s.isClosed() {
			return Chunk{}, false
		}
		if s.ready != "" {
			c := Chunk{Index: s.emitted, Text: s.ready}
			s.ready = ""
			s.emitted++
			return c, true
		}
		if s.isDone() {
			s.release()
			return Chunk{}, false
		}
		s.step(ctx)
	}
}

// Outcome returns the terminal state. It is meaningful once Next has
// returned false or the stream was closed.
func (s *Stream) Outcome() Outcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.outcome
	o.Usage = Usage{PromptTokens: s.nPrompt, CompletionTokens: s.generated}
	return o
}

// Err returns the failure of a Failed stream.
func (s *Stream) Err() error { return s.Outcome().Err }

// Close ends the stream early. A stream that has not finished yet records
// StoppedByUser. Calling Close more than once is harmless.
func (s *Stream) Close() error {
	s.mu.Lock()
	if !s.done {
		s.done = true
		s.outcome = Outcome{Reason: StoppedByUser}
	}
	s.mu.Unlock()
	s.release()
	return nil
}

func (s *Stream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Stream) isDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// step runs one iteration of the loop.
func (s *Stream) step(ctx context.Context) {
	if ctx.Err() != nil {
		s.finish(StoppedByUser, nil)
		return
	}

	var input []int
	if !s.prefilled {
		input = s.history[:s.nPrompt]
		s.prefilled = true
	} else {
		input = s.history[len(s.history)-1:]
	}
	t0 := time.Now()
	logits, err := s.sess.Step(ctx, input)
	stepDuration.Observe(time.Since(t0).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			s.finish(StoppedByUser, nil)
			return
		}
		s.finish(Failed, ModelError{Err: fmt.Errorf("step at position %d: %w", len(s.history), err)})
		return
	}

	id, err := s.smp.Choose(logits, s.history)
	if err != nil {
		s.finish(Failed, ModelError{Err: fmt.Errorf("sample: %w", err)})
		return
	}
	if id == s.eos {
		s.flush()
		s.finish(Completed, nil)
		return
	}
	s.history = append(s.history, id)
	s.mu.Lock()
	s.generated++
	generated := s.generated
	s.mu.Unlock()
	tokensGenerated.Inc()

	text, err := s.dec.Add(id)
	if err != nil {
		if tokenizer.IsUnknownToken(err) {
			err = fmt.Errorf("model produced id %d outside the vocabulary: %w", id, err)
		} else {
			err = fmt.Errorf("decode token %d: %w", id, err)
		}
		s.finish(Failed, ModelError{Err: err})
		return
	}
	s.held += text
	if i, ok := findStop(s.held, s.stops); ok {
		s.ready = s.held[:i]
		s.held = ""
		s.finish(StoppedBySequence, nil)
		return
	}

	if generated >= s.maxTokens || (s.window > 0 && len(s.history) >= s.window) {
		s.flush()
		s.finish(TruncatedAtMax, nil)
		return
	}

	keep := stopPrefixLen(s.held, s.stops)
	s.ready = s.held[:len(s.held)-keep]
	s.held = s.held[len(s.held)-keep:]
}

// flush moves everything still buffered into ready. A stop sequence can
// still only appear in text that was held back, so it is checked once more.
func (s *Stream) flush() {
	s.held += s.dec.Flush()
	if i, ok := findStop(s.held, s.stops); ok {
		s.held = s.held[:i]
	}
	s.ready += s.held
	s.held = ""
}

func (s *Stream) finish(reason Reason, err error) {
	s.mu.Lock()
	if !s.done {
		s.done = true
		s.outcome = Outcome{Reason: reason, Err: err}
	}
	s.mu.Unlock()
}

// release closes the session and runs the OnClose hooks exactly once.
func (s *Stream) release() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	hooks := s.onClose
	s.onClose = nil
	reason := s.outcome.Reason
	generated := s.generated
	s.mu.Unlock()

	if err := s.sess.Close(); err != nil {
		s.log.Warn().Err(err).Msg("close session")
	}
	outcomesTotal.WithLabelValues(string(reason)).Inc()
	ev := s.log.Debug().
		Str("reason", string(reason)).
		Int("prompt_tokens", s.nPrompt).
		Int("completion_tokens", generated)
	if !s.started.IsZero() {
		ev = ev.Dur("elapsed", time.Since(s.started))
	}
	ev.Msg("generation finished")
	for _, fn := range hooks {
		fn()
	}
}
