// Package generate runs the token-by-token generation loop. A Generator turns a
// Request into a Prepared job; starting it yields a Stream that computes one
// model step only when its consumer asks for more text.
package generate

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"oxpilot/internal/model"
	"oxpilot/internal/sampler"
	"oxpilot/internal/tokenizer"
)

const (
	defaultMaxTokens = 256
	// maxPrealloc bounds the history capacity reserved up front.
	maxPrealloc = 4096
)

// Options configures a Generator.
type Options struct {
	// AddBOS prepends the tokenizer's BOS id to every prompt when it has one.
	AddBOS bool
	// DefaultMaxTokens applies when a Request leaves MaxTokens at 0.
	DefaultMaxTokens int
	Logger           *zerolog.Logger
}

// Generator binds a tokenizer to a model. It is safe for concurrent use;
// all per-request state lives in the Stream.
type Generator struct {
	tok       tokenizer.Tokenizer
	model     model.Model
	addBOS    bool
	maxTokens int
	log       zerolog.Logger
}

// New returns a Generator for m using tok.
func New(tok tokenizer.Tokenizer, m model.Model, opts Options) *Generator {
	g := &Generator{
		tok:       tok,
		model:     m,
		addBOS:    opts.AddBOS,
		maxTokens: opts.DefaultMaxTokens,
		log:       zerolog.Nop(),
	}
	if g.maxTokens <= 0 {
		g.maxTokens = defaultMaxTokens
	}
	if opts.Logger != nil {
		g.log = *opts.Logger
	}
	return g
}

// Tokenizer returns the tokenizer prompts are encoded with.
func (g *Generator) Tokenizer() tokenizer.Tokenizer { return g.tok }

// Model returns the underlying model.
func (g *Generator) Model() model.Model { return g.model }

// Prepared is a validated, tokenized request that has not touched the model.
type Prepared struct {
	g         *Generator
	sampling  sampler.Config
	maxTokens int
	stops     []string
	prompt    []int
}

// PromptTokens is the number of tokens prefilled on the first step.
func (p *Prepared) PromptTokens() int { return len(p.prompt) }

// MaxTokens is the effective completion budget.
func (p *Prepared) MaxTokens() int { return p.maxTokens }

// Prepare validates req and tokenizes its prompt. All failures are
// ValidationErrors.
func (g *Generator) Prepare(req Request) (*Prepared, error) {
	if err := req.Sampling.Validate(); err != nil {
		return nil, ValidationError{Field: "sampling", Reason: err.Error()}
	}
	maxTokens := req.MaxTokens
	switch {
	case maxTokens < 0:
		return nil, ValidationError{Field: "max_tokens", Reason: fmt.Sprintf("must be >= 1, got %d", maxTokens)}
	case maxTokens == 0:
		maxTokens = g.maxTokens
	}
	for i, s := range req.Stop {
		if s == "" {
			return nil, ValidationError{Field: "stop", Reason: fmt.Sprintf("entry %d is empty", i)}
		}
	}
	if !utf8.ValidString(req.Prompt) {
		return nil, ValidationError{Field: "prompt", Reason: "not valid UTF-8"}
	}

	ids, err := g.tok.Encode(req.Prompt)
	if err != nil {
		return nil, ValidationError{Field: "prompt", Reason: err.Error()}
	}
	if bos := g.tok.BOS(); g.addBOS && bos >= 0 && (len(ids) == 0 || ids[0] != bos) {
		ids = append([]int{bos}, ids...)
	}
	if window := g.model.Info().ContextLength; window > 0 && len(ids) > window {
		return nil, ValidationError{
			Field:  "prompt",
			Reason: fmt.Sprintf("%d tokens exceed the context window of %d", len(ids), window),
		}
	}
	// budgets past the window are clamped; the window ends the stream anyway
	if window := g.model.Info().ContextLength; window > 0 {
		maxTokens = min(maxTokens, max(window-len(ids), 1))
	}

	return &Prepared{
		g:         g,
		sampling:  req.Sampling,
		maxTokens: maxTokens,
		stops:     append([]string(nil), req.Stop...),
		prompt:    ids,
	}, nil
}

// Start opens a fresh session and returns the stream. No model step runs
// until the first call to Next. ctx only bounds session creation; each Next
// call carries its own context.
func (p *Prepared) Start(ctx context.Context) (*Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	smp, err := sampler.New(p.sampling)
	if err != nil {
		return nil, ValidationError{Field: "sampling", Reason: err.Error()}
	}
	sess, err := p.g.model.NewSession()
	if err != nil {
		return nil, ModelError{Err: fmt.Errorf("new session: %w", err)}
	}
	promptTokens.Add(float64(len(p.prompt)))

	history := make([]int, len(p.prompt), len(p.prompt)+min(p.maxTokens, maxPrealloc))
	copy(history, p.prompt)
	return &Stream{
		sess:      sess,
		smp:       smp,
		dec:       tokenizer.NewDecoder(p.g.tok),
		eos:       p.g.tok.EOS(),
		window:    p.g.model.Info().ContextLength,
		stops:     p.stops,
		maxTokens: p.maxTokens,
		history:   history,
		nPrompt:   len(p.prompt),
		log:       p.g.log,
	}, nil
}
