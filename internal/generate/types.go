package generate

import "oxpilot/internal/sampler"

// Request is one generation job. MaxTokens 0 selects the generator default.
type Request struct {
	Prompt    string
	Sampling  sampler.Config
	MaxTokens int
	Stop      []string
}

// Chunk is a contiguous piece of decoded text. Index counts chunks of one
// stream from zero.
type Chunk struct {
	Index int
	Text  string
}

// Reason is the terminal state of a stream.
type Reason string

const (
	Completed         Reason = "completed"
	StoppedByUser     Reason = "stopped_by_user"
	StoppedBySequence Reason = "stopped_by_sequence"
	TruncatedAtMax    Reason = "truncated_at_max"
	Failed            Reason = "failed"
)

// FinishReason is the OpenAI-compatible spelling used on the wire.
func (r Reason) FinishReason() string {
	switch r {
	case Completed, StoppedBySequence:
		return "stop"
	case TruncatedAtMax:
		return "length"
	case StoppedByUser:
		return "cancelled"
	case Failed:
		return "error"
	default:
		return ""
	}
}

// Usage is token accounting for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// TotalTokens is prompt plus completion.
func (u Usage) TotalTokens() int { return u.PromptTokens + u.CompletionTokens }

// Outcome is available once a stream has ended. Err is set only for Failed.
type Outcome struct {
	Reason Reason
	Err    error
	Usage  Usage
}
