// Package stream delivers generated chunks to a consumer: server-sent events
// in the OpenAI completion and chat shapes, NDJSON lines, or a single
// aggregated string.
package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

// Source is the pull side of a generation. *generate.Stream implements it.
type Source interface {
	Next(ctx context.Context) (generate.Chunk, bool)
	Outcome() generate.Outcome
}

// Sink consumes the chunks of one request and is told the outcome once.
type Sink interface {
	Chunk(generate.Chunk) error
	Finish(generate.Outcome) error
}

// Pump moves every chunk from src to sink and then reports the outcome. A
// sink write error stops pumping; the caller still has to close the stream.
func Pump(ctx context.Context, src Source, sink Sink) (generate.Outcome, error) {
	for c, ok := src.Next(ctx); ok; c, ok = src.Next(ctx) {
		if err := sink.Chunk(c); err != nil {
			return src.Outcome(), err
		}
	}
	o := src.Outcome()
	return o, sink.Finish(o)
}

// Collect concatenates the chunks of src and returns once the outcome is
// known. A Failed outcome is returned as the error together with the text
// produced so far; a stream stopped by ctx returns ctx's error.
func Collect(ctx context.Context, src Source) (string, generate.Outcome, error) {
	var b strings.Builder
	for c, ok := src.Next(ctx); ok; c, ok = src.Next(ctx) {
		b.WriteString(c.Text)
	}
	o := src.Outcome()
	switch {
	case o.Reason == generate.Failed:
		return b.String(), o, o.Err
	case o.Reason == generate.StoppedByUser && ctx.Err() != nil:
		return b.String(), o, ctx.Err()
	}
	return b.String(), o, nil
}

// Peeked is a Source whose first chunk has already been pulled. The HTTP
// layer uses it to learn about an immediate model failure before committing
// to a 200 status.
type Peeked struct {
	src   Source
	first generate.Chunk
	ok    bool
	used  bool
}

// Peek pulls the first chunk of src.
func Peek(ctx context.Context, src Source) *Peeked {
	c, ok := src.Next(ctx)
	return &Peeked{src: src, first: c, ok: ok}
}

// Failed reports whether the stream ended with a failure before producing
// any chunk.
func (p *Peeked) Failed() bool {
	return !p.ok && p.src.Outcome().Reason == generate.Failed
}

func (p *Peeked) Next(ctx context.Context) (generate.Chunk, bool) {
	if !p.used {
		p.used = true
		if p.ok {
			return p.first, true
		}
		return generate.Chunk{}, false
	}
	if !p.ok {
		return generate.Chunk{}, false
	}
	return p.src.Next(ctx)
}

func (p *Peeked) Outcome() generate.Outcome { return p.src.Outcome() }

// Usage converts generation accounting to the wire shape.
func Usage(u generate.Usage) *types.Usage {
	return &types.Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens(),
	}
}

// ErrorDetail describes err for an error body or error frame.
func ErrorDetail(err error) types.ErrorDetail {
	code := http.StatusInternalServerError
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		code = sc.StatusCode()
	}
	kind := "server_error"
	switch {
	case code == http.StatusBadRequest:
		kind = "invalid_request_error"
	case code == http.StatusTooManyRequests:
		kind = "capacity_error"
	case generate.IsModelError(err):
		kind = "model_error"
	}
	return types.ErrorDetail{Message: err.Error(), Type: kind, Code: code}
}
