// Package tokenizer converts between text and token ids. Decoding is exposed
// per token as raw bytes so callers can stream text as it is produced; the
// Decoder type turns those bytes into valid UTF-8 fragments.
package tokenizer

import (
	"errors"
	"fmt"
	"strings"
)

// Tokenizer is the capability the generation loop needs from a vocabulary.
type Tokenizer interface {
	// Encode converts text into token ids. Special token strings found in the
	// text (e.g. "<s>") are mapped to their ids.
	Encode(text string) ([]int, error)
	// Piece returns the raw bytes of one token. The bytes of a single token do
	// not have to form complete UTF-8 characters.
	Piece(id int) ([]byte, error)
	// VocabSize is the number of ids, logits vectors have this length.
	VocabSize() int
	// BOS and EOS return the special token ids, or -1 when the vocabulary has none.
	BOS() int
	EOS() int
}

// Decode concatenates the pieces of ids. Invalid UTF-8 is replaced with U+FFFD.
func Decode(t Tokenizer, ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		p, err := t.Piece(id)
		if err != nil {
			return "", err
		}
		b = append(b, p...)
	}
	return strings.ToValidUTF8(string(b), "\uFFFD"), nil
}

// unknownTokenError is returned when an id is outside the vocabulary.
type unknownTokenError struct{ id int }

func (e unknownTokenError) Error() string { return fmt.Sprintf("token id out of range: %d", e.id) }

// IsUnknownToken reports whether err was caused by an id outside the vocabulary.
func IsUnknownToken(err error) bool {
	var u unknownTokenError
	return errors.As(err, &u)
}
