package stream

import (
	"time"

	"github.com/google/uuid"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

// Completion frames text_completion objects.
type Completion struct {
	ID      string
	Model   string
	Created int64
}

// NewCompletion returns a framer with a fresh cmpl- id.
func NewCompletion(model string) Completion {
	return Completion{ID: "cmpl-" + uuid.NewString(), Model: model, Created: time.Now().Unix()}
}

func (c Completion) frame(text string, reason *string, usage *types.Usage) types.Completion {
	return types.Completion{
		ID:      c.ID,
		Object:  "text_completion",
		Created: c.Created,
		Model:   c.Model,
		Choices: []types.CompletionChoice{{Text: text, Index: 0, FinishReason: reason}},
		Usage:   usage,
	}
}

func (c Completion) Chunk(ch generate.Chunk) any { return c.frame(ch.Text, nil, nil) }

func (c Completion) Final(o generate.Outcome) any {
	reason := o.Reason.FinishReason()
	return c.frame("", &reason, Usage(o.Usage))
}

// Whole is the non-streaming response.
func (c Completion) Whole(text string, o generate.Outcome) types.Completion {
	reason := o.Reason.FinishReason()
	return c.frame(text, &reason, Usage(o.Usage))
}

// Chat frames chat.completion.chunk objects. The first chunk carries the
// assistant role.
type Chat struct {
	ID      string
	Model   string
	Created int64
}

// NewChat returns a framer with a fresh chatcmpl- id.
func NewChat(model string) Chat {
	return Chat{ID: "chatcmpl-" + uuid.NewString(), Model: model, Created: time.Now().Unix()}
}

func (c Chat) frame(delta types.ChatDelta, reason *string, usage *types.Usage) types.ChatCompletionChunk {
	return types.ChatCompletionChunk{
		ID:      c.ID,
		Object:  "chat.completion.chunk",
		Created: c.Created,
		Model:   c.Model,
		Choices: []types.ChatChunkChoice{{Index: 0, Delta: delta, FinishReason: reason}},
		Usage:   usage,
	}
}

func (c Chat) Chunk(ch generate.Chunk) any {
	d := types.ChatDelta{Content: ch.Text}
	if ch.Index == 0 {
		d.Role = "assistant"
	}
	return c.frame(d, nil, nil)
}

func (c Chat) Final(o generate.Outcome) any {
	reason := o.Reason.FinishReason()
	return c.frame(types.ChatDelta{}, &reason, Usage(o.Usage))
}

// Whole is the non-streaming response.
func (c Chat) Whole(text string, o generate.Outcome) types.ChatCompletion {
	reason := o.Reason.FinishReason()
	return types.ChatCompletion{
		ID:      c.ID,
		Object:  "chat.completion",
		Created: c.Created,
		Model:   c.Model,
		Choices: []types.ChatChoice{{
			Index:        0,
			Message:      types.ChatMessage{Role: "assistant", Content: text},
			FinishReason: &reason,
		}},
		Usage: Usage(o.Usage),
	}
}
