// Package ngram is a count-based n-gram language model backend. Logits are
// additively smoothed log-probabilities of the next token given the previous
// Order-1 tokens, backed off to shorter contexts when a context was never
// observed.
package ngram

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"oxpilot/internal/model"
)

const (
	BackendName          = "ngram"
	defaultOrder         = 3
	defaultAlpha         = 0.01
	defaultContextLength = 2048
)

// Model holds next-token counts keyed by context.
type Model struct {
	name          string
	order         int
	alpha         float64
	vocabSize     int
	contextLength int
	// counts[n][ctxKey] maps next token -> count for contexts of n tokens (n < order)
	counts []map[string]map[int]uint32
	totals []map[string]uint32
}

// Options configures a new, empty Model.
type Options struct {
	Name          string
	Order         int
	Alpha         float64
	VocabSize     int
	ContextLength int
}

// New returns an empty model. Untrained models produce uniform logits.
func New(opts Options) (*Model, error) {
	if opts.VocabSize <= 0 {
		return nil, errors.New("ngram: vocab size must be positive")
	}
	if opts.Order <= 0 {
		opts.Order = defaultOrder
	}
	if opts.Alpha <= 0 {
		opts.Alpha = defaultAlpha
	}
	if opts.ContextLength <= 0 {
		opts.ContextLength = defaultContextLength
	}
	if opts.Name == "" {
		opts.Name = BackendName
	}
	m := &Model{
		name:          opts.Name,
		order:         opts.Order,
		alpha:         opts.Alpha,
		vocabSize:     opts.VocabSize,
		contextLength: opts.ContextLength,
		counts:        make([]map[string]map[int]uint32, opts.Order),
		totals:        make([]map[string]uint32, opts.Order),
	}
	for i := range m.counts {
		m.counts[i] = make(map[string]map[int]uint32)
		m.totals[i] = make(map[string]uint32)
	}
	return m, nil
}

func (m *Model) Info() model.Info {
	return model.Info{Name: m.name, Backend: BackendName, VocabSize: m.vocabSize, ContextLength: m.contextLength}
}

func (m *Model) Close() error { return nil }

// NewSession returns an empty decode state.
func (m *Model) NewSession() (model.Session, error) {
	return &session{m: m}, nil
}

// Observe counts next following every suffix (up to Order-1 tokens) of history.
func (m *Model) Observe(history []int, next int) {
	for n := 0; n < m.order && n <= len(history); n++ {
		key := contextKey(history[len(history)-n:])
		row := m.counts[n][key]
		if row == nil {
			row = make(map[int]uint32)
			m.counts[n][key] = row
		}
		row[next]++
		m.totals[n][key]++
	}
}

// logits computes smoothed log-probabilities for the longest observed suffix of history.
func (m *Model) logits(history []int) []float32 {
	out := make([]float32, m.vocabSize)
	for n := min(m.order-1, len(history)); n >= 0; n-- {
		key := contextKey(history[len(history)-n:])
		total, ok := m.totals[n][key]
		if !ok {
			continue
		}
		row := m.counts[n][key]
		denom := float64(total) + m.alpha*float64(m.vocabSize)
		base := float32(math.Log(m.alpha / denom))
		for i := range out {
			out[i] = base
		}
		for id, c := range row {
			if id >= 0 && id < m.vocabSize {
				out[id] = float32(math.Log((float64(c) + m.alpha) / denom))
			}
		}
		return out
	}
	// nothing observed at all: uniform
	return out
}

func contextKey(ids []int) string {
	if len(ids) == 0 {
		return ""
	}
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(id))
	}
	return b.String()
}

// session keeps the token history; the last Order-1 tokens are the model state.
type session struct {
	m       *Model
	history []int
	closed  bool
}

func (s *session) Step(ctx context.Context, tokens []int) ([]float32, error) {
	if s.closed {
		return nil, errors.New("ngram: session closed")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, id := range tokens {
		if id < 0 || id >= s.m.vocabSize {
			return nil, fmt.Errorf("ngram: token %d outside vocabulary of %d", id, s.m.vocabSize)
		}
	}
	if len(s.history)+len(tokens) > s.m.contextLength {
		return nil, fmt.Errorf("ngram: context length %d exceeded", s.m.contextLength)
	}
	s.history = append(s.history, tokens...)
	return s.m.logits(s.history), nil
}

func (s *session) Position() int { return len(s.history) }

func (s *session) Close() error {
	s.closed = true
	s.history = nil
	return nil
}
