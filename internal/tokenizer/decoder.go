package tokenizer

import (
	"strings"
	"unicode/utf8"
)

// Decoder turns a stream of token ids into text fragments that always end on
// a character boundary. Bytes of an incomplete trailing character are kept
// until a later token completes them.
type Decoder struct {
	tok     Tokenizer
	pending []byte
}

// NewDecoder returns a Decoder reading pieces from t.
func NewDecoder(t Tokenizer) *Decoder {
	return &Decoder{tok: t}
}

// Add appends the bytes of id and returns the text that can be emitted safely.
// The result is empty when everything is still buffered.
func (d *Decoder) Add(id int) (string, error) {
	p, err := d.tok.Piece(id)
	if err != nil {
		return "", err
	}
	d.pending = append(d.pending, p...)
	cut := completePrefix(d.pending)
	if cut == 0 {
		return "", nil
	}
	out := strings.ToValidUTF8(string(d.pending[:cut]), "\uFFFD")
	d.pending = append(d.pending[:0], d.pending[cut:]...)
	return out, nil
}

// Flush returns whatever is still buffered. A dangling partial character
// becomes U+FFFD.
func (d *Decoder) Flush() string {
	if len(d.pending) == 0 {
		return ""
	}
	out := strings.ToValidUTF8(string(d.pending), "\uFFFD")
	d.pending = d.pending[:0]
	return out
}

// completePrefix returns the length of b without an incomplete trailing
// UTF-8 sequence. Invalid bytes count as complete; they are replaced later.
func completePrefix(b []byte) int {
	// a UTF-8 sequence is at most 4 bytes, so only the last 3 can be a partial one
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax+1; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return i
			}
			break
		}
	}
	return len(b)
}
