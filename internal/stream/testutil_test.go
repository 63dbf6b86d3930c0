package stream

import (
	"context"
	"errors"

	"oxpilot/internal/generate"
)

// fakeSource replays chunks and then reports outcome.
type fakeSource struct {
	chunks  []string
	outcome generate.Outcome
	pulls   int
}

func (f *fakeSource) Next(ctx context.Context) (generate.Chunk, bool) {
	f.pulls++
	if ctx.Err() != nil {
		f.outcome = generate.Outcome{Reason: generate.StoppedByUser}
		f.chunks = nil
		return generate.Chunk{}, false
	}
	if len(f.chunks) == 0 {
		return generate.Chunk{}, false
	}
	i := f.pulls - 1
	c := generate.Chunk{Index: i, Text: f.chunks[0]}
	f.chunks = f.chunks[1:]
	return c, true
}

func (f *fakeSource) Outcome() generate.Outcome { return f.outcome }

func completed(chunks ...string) *fakeSource {
	n := len(chunks)
	return &fakeSource{
		chunks:  chunks,
		outcome: generate.Outcome{Reason: generate.Completed, Usage: generate.Usage{PromptTokens: 3, CompletionTokens: n}},
	}
}

func failed(chunks ...string) *fakeSource {
	return &fakeSource{
		chunks:  chunks,
		outcome: generate.Outcome{Reason: generate.Failed, Err: generate.ModelError{Err: errors.New("boom")}},
	}
}

// brokenWriter fails every write.
type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("client gone") }
