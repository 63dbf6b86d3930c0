package manager

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"oxpilot/internal/generate"
	"oxpilot/internal/model"
	"oxpilot/internal/sampler"
	"oxpilot/internal/tokenizer"
	"oxpilot/pkg/types"
)

// fakeModel answers every prompt with "ok" followed by EOS.
type fakeModel struct {
	sessions atomic.Int32
	fail     atomic.Bool
	panics   atomic.Bool
	closed   atomic.Bool
}

func (f *fakeModel) Info() model.Info {
	return model.Info{Name: "fake", Backend: "fake", VocabSize: 258, ContextLength: 64}
}

func (f *fakeModel) NewSession() (model.Session, error) {
	f.sessions.Add(1)
	if f.panics.Load() {
		panic("session setup exploded")
	}
	return &fakeSession{f: f}, nil
}

func (f *fakeModel) Close() error { f.closed.Store(true); return nil }

type fakeSession struct {
	f   *fakeModel
	pos int
	n   int
}

func (s *fakeSession) Step(ctx context.Context, tokens []int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.f.fail.Load() {
		return nil, errors.New("boom")
	}
	s.pos += len(tokens)
	script := []int{'o', 'k', tokenizer.NewBytes().EOS()}
	logits := make([]float32, 258)
	logits[script[min(s.n, len(script)-1)]] = 5
	s.n++
	return logits, nil
}

func (s *fakeSession) Position() int { return s.pos }
func (s *fakeSession) Close() error  { return nil }

func greedy() generate.Request {
	return generate.Request{
		Prompt:    "hi",
		Sampling:  sampler.Config{Temperature: 0, TopP: 1, RepetitionPenalty: 1},
		MaxTokens: 8,
	}
}

func newTestManager(t *testing.T, depth int, wait time.Duration) (*Manager, *fakeModel, *MemoryPublisher) {
	t.Helper()
	fm := &fakeModel{}
	pub := NewMemoryPublisher()
	m := NewWithConfig(ManagerConfig{
		Generator:     generate.New(tokenizer.NewBytes(), fm, generate.Options{}),
		Model:         types.Model{ID: "fake", Backend: "fake"},
		MaxQueueDepth: depth,
		MaxWait:       wait,
		DrainTimeout:  50 * time.Millisecond,
		Publisher:     pub,
	})
	return m, fm, pub
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func count(names []string, name string) int {
	n := 0
	for _, s := range names {
		if s == name {
			n++
		}
	}
	return n
}
