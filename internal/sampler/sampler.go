// Package sampler picks the next token from a logits vector.
package sampler

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
)

// maxPenaltyFactor caps the compounded repetition penalty so a token repeated
// many times keeps a finite, non-zero share of probability mass.
const maxPenaltyFactor = 1e4

// Config holds per-request sampling parameters.
type Config struct {
	// Temperature 0 selects the highest logit deterministically.
	Temperature float64
	// TopP is the nucleus mass in (0, 1].
	TopP float64
	// RepetitionPenalty >= 1; 1 disables the penalty.
	RepetitionPenalty float64
	// RepeatLastN limits the penalty to the last N tokens; 0 penalizes the whole history.
	RepeatLastN int
	Seed        uint64
}

// DefaultConfig matches the CLI defaults.
func DefaultConfig() Config {
	return Config{Temperature: 1, TopP: 1, RepetitionPenalty: 1.1, RepeatLastN: 64, Seed: 299792458}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case math.IsNaN(c.Temperature) || c.Temperature < 0 || math.IsInf(c.Temperature, 0):
		return fmt.Errorf("temperature must be >= 0, got %v", c.Temperature)
	case math.IsNaN(c.TopP) || c.TopP <= 0 || c.TopP > 1:
		return fmt.Errorf("top_p must be in (0, 1], got %v", c.TopP)
	case math.IsNaN(c.RepetitionPenalty) || c.RepetitionPenalty < 1 || math.IsInf(c.RepetitionPenalty, 0):
		return fmt.Errorf("repetition_penalty must be >= 1, got %v", c.RepetitionPenalty)
	case c.RepeatLastN < 0:
		return fmt.Errorf("repeat_last_n must be >= 0, got %d", c.RepeatLastN)
	}
	return nil
}

// Sampler is owned by one request; it is not safe for concurrent use.
type Sampler struct {
	cfg   Config
	rng   *rand.Rand
	order []int
	probs []float64
}

// New returns a Sampler with its own PCG source seeded from cfg.Seed.
func New(cfg Config) (*Sampler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sampler{
		cfg: cfg,
		rng: rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9E3779B9)),
	}, nil
}

// Choose returns the next token id. logits is modified in place by the
// repetition penalty; history holds the ids generated or consumed so far.
func (s *Sampler) Choose(logits []float32, history []int) (int, error) {
	if len(logits) == 0 {
		return -1, errors.New("sampler: no logits")
	}
	ApplyRepetitionPenalty(logits, history, s.cfg.RepetitionPenalty, s.cfg.RepeatLastN)

	// temperatures so small that 1/T overflows behave like greedy decoding
	invT := 1 / s.cfg.Temperature
	if s.cfg.Temperature == 0 || math.IsInf(invT, 0) {
		return Argmax(logits), nil
	}

	// probabilities at temperature, max subtracted before exponentiation
	maxv := float64(logits[Argmax(logits)])
	if math.IsInf(maxv, 0) || math.IsNaN(maxv) {
		return -1, fmt.Errorf("sampler: non-finite logits (max %v)", maxv)
	}
	if cap(s.probs) < len(logits) {
		s.probs = make([]float64, len(logits))
		s.order = make([]int, len(logits))
	}
	probs := s.probs[:len(logits)]
	order := s.order[:len(logits)]
	var sum float64
	for i, l := range logits {
		p := math.Exp((float64(l) - maxv) * invT)
		if math.IsNaN(p) {
			p = 0
		}
		probs[i] = p
		sum += p
		order[i] = i
	}
	if sum == 0 || math.IsInf(sum, 0) || math.IsNaN(sum) {
		return Argmax(logits), nil
	}
	for i := range probs {
		probs[i] /= sum
	}

	// descending probability, ties broken by lower id
	slices.SortFunc(order, func(a, b int) int {
		if c := cmp.Compare(probs[b], probs[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	cut := Nucleus(probs, order, s.cfg.TopP)
	var mass float64
	for _, id := range order[:cut] {
		mass += probs[id]
	}

	r := s.rng.Float64() * mass
	var c float64
	for _, id := range order[:cut] {
		c += probs[id]
		if r < c {
			return id, nil
		}
	}
	return order[cut-1], nil
}

// Nucleus returns how many entries of order (sorted by descending
// probability) form the smallest prefix with cumulative mass >= topP. The
// entry that crosses the threshold is included.
func Nucleus(probs []float64, order []int, topP float64) int {
	if topP >= 1 {
		return len(order)
	}
	var c float64
	for i, id := range order {
		c += probs[id]
		if c >= topP {
			return i + 1
		}
	}
	return len(order)
}

// ApplyRepetitionPenalty penalizes every id in the last window tokens of
// history. Each occurrence compounds the penalty: positive logits are divided
// by penalty^count and negative ones multiplied by it.
func ApplyRepetitionPenalty(logits []float32, history []int, penalty float64, window int) {
	if penalty <= 1 || len(history) == 0 {
		return
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	counts := make(map[int]int, len(history))
	for _, id := range history {
		if id >= 0 && id < len(logits) {
			counts[id]++
		}
	}
	for id, n := range counts {
		f := math.Min(math.Pow(penalty, float64(n)), maxPenaltyFactor)
		l := float64(logits[id])
		if l > 0 {
			l /= f
		} else {
			l *= f
		}
		logits[id] = float32(math.Max(l, -math.MaxFloat32))
	}
}

// Argmax returns the index of the largest value, the lowest index on ties.
func Argmax(x []float32) int {
	best := 0
	for i := 1; i < len(x); i++ {
		if x[i] > x[best] {
			best = i
		}
	}
	return best
}
