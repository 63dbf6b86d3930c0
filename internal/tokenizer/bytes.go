package tokenizer

// Byte ids 0..255 map to single bytes; the two ids after them are BOS and EOS.
const (
	byteBOS = 256
	byteEOS = 257
)

// Bytes is a byte-level tokenizer: every byte is a token. It supports any
// input text and is the default when no vocabulary file is configured.
type Bytes struct{}

// NewBytes returns the byte-level tokenizer.
func NewBytes() Bytes { return Bytes{} }

func (Bytes) Encode(text string) ([]int, error) {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids, nil
}

func (Bytes) Piece(id int) ([]byte, error) {
	switch {
	case id >= 0 && id < 256:
		return []byte{byte(id)}, nil
	case id == byteBOS, id == byteEOS:
		// specials carry no text
		return nil, nil
	default:
		return nil, unknownTokenError{id: id}
	}
}

func (Bytes) VocabSize() int { return 258 }
func (Bytes) BOS() int       { return byteBOS }
func (Bytes) EOS() int       { return byteEOS }
