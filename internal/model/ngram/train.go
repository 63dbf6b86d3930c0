package ngram

import (
	"fmt"

	"oxpilot/internal/tokenizer"
)

// Train counts every document of docs. Each document is framed by the
// tokenizer's BOS and EOS tokens when it has them, so the model learns
// where sequences start and end.
func (m *Model) Train(tok tokenizer.Tokenizer, docs []string) (int, error) {
	if tok.VocabSize() != m.vocabSize {
		return 0, fmt.Errorf("ngram: tokenizer vocab %d does not match model vocab %d", tok.VocabSize(), m.vocabSize)
	}
	seen := 0
	for i, doc := range docs {
		ids, err := tok.Encode(doc)
		if err != nil {
			return seen, fmt.Errorf("encode document %d: %w", i, err)
		}
		seq := make([]int, 0, len(ids)+2)
		if bos := tok.BOS(); bos >= 0 {
			seq = append(seq, bos)
		}
		seq = append(seq, ids...)
		if eos := tok.EOS(); eos >= 0 {
			seq = append(seq, eos)
		}
		for j := range seq {
			m.Observe(seq[:j], seq[j])
		}
		seen += len(seq)
	}
	return seen, nil
}
