package stream

import (
	"io"

	json "github.com/goccy/go-json"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

// NDJSON is a Sink writing `{"token": ...}` lines and a final `{"done": true}`
// line.
type NDJSON struct {
	enc   *json.Encoder
	flush func()
}

func NewNDJSON(w io.Writer, flush func()) *NDJSON {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &NDJSON{enc: enc, flush: flush}
}

func (n *NDJSON) Chunk(c generate.Chunk) error {
	return n.line(types.InferToken{Token: c.Text})
}

func (n *NDJSON) Finish(o generate.Outcome) error {
	done := types.InferDone{
		Done:         true,
		FinishReason: o.Reason.FinishReason(),
		Usage:        *Usage(o.Usage),
	}
	if o.Reason == generate.Failed && o.Err != nil {
		d := ErrorDetail(o.Err)
		done.Error = &d
	}
	return n.line(done)
}

func (n *NDJSON) line(v any) error {
	if err := n.enc.Encode(v); err != nil {
		return err
	}
	if n.flush != nil {
		n.flush()
	}
	return nil
}
