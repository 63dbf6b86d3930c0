package generate

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"oxpilot/internal/model"
	"oxpilot/internal/sampler"
	"oxpilot/internal/tokenizer"
)

var errInjected = errors.New("injected failure")

// scriptModel emits a fixed token sequence, one per step, regardless of input.
// Past the end of the script it keeps repeating the last entry.
type scriptModel struct {
	script []int
	window int
	vocab  int // logits length, 258 when zero
	failAt int // step index that fails, -1 for never
	onStep func(call int)
	steps  atomic.Int32
	inputs [][]int
}

func newScript(text string, eos bool) *scriptModel {
	ids := make([]int, 0, len(text)+1)
	for i := 0; i < len(text); i++ {
		ids = append(ids, int(text[i]))
	}
	if eos {
		ids = append(ids, tokenizer.NewBytes().EOS())
	}
	return &scriptModel{script: ids, window: 2048, failAt: -1}
}

func (m *scriptModel) Info() model.Info {
	return model.Info{Name: "script", Backend: "script", VocabSize: 258, ContextLength: m.window}
}

func (m *scriptModel) NewSession() (model.Session, error) { return &scriptSession{m: m}, nil }
func (m *scriptModel) Close() error                       { return nil }

type scriptSession struct {
	m      *scriptModel
	calls  int
	pos    int
	closed bool
}

func (s *scriptSession) Step(ctx context.Context, tokens []int) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.steps.Add(1)
	if s.m.onStep != nil {
		s.m.onStep(s.calls)
	}
	s.m.inputs = append(s.m.inputs, append([]int(nil), tokens...))
	if s.calls == s.m.failAt {
		return nil, errInjected
	}
	id := s.m.script[min(s.calls, len(s.m.script)-1)]
	s.calls++
	s.pos += len(tokens)
	logits := make([]float32, max(s.m.vocab, 258))
	logits[id] = 10
	return logits, nil
}

func (s *scriptSession) Position() int { return s.pos }
func (s *scriptSession) Close() error  { s.closed = true; return nil }

func greedy() sampler.Config {
	return sampler.Config{Temperature: 0, TopP: 1, RepetitionPenalty: 1}
}

func start(t *testing.T, g *Generator, req Request) *Stream {
	t.Helper()
	p, err := g.Prepare(req)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	s, err := p.Start(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return s
}

func drain(s *Stream) []string {
	var out []string
	for c, ok := s.Next(context.Background()); ok; c, ok = s.Next(context.Background()) {
		out = append(out, c.Text)
	}
	return out
}
