package ngram

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

const fileVersion = 1

type fileFormat struct {
	Version       int             `json:"version"`
	Name          string          `json:"name"`
	Order         int             `json:"order"`
	Alpha         float64         `json:"alpha"`
	VocabSize     int             `json:"vocab_size"`
	ContextLength int             `json:"context_length"`
	Tokenizer     string          `json:"tokenizer,omitempty"`
	Contexts      []contextCounts `json:"contexts"`
}

type contextCounts struct {
	Context []int          `json:"context"`
	Next    map[int]uint32 `json:"next"`
}

// Save writes the model as JSON. tokenizerID records which tokenizer the ids
// belong to so loading with a different one can be refused.
func (m *Model) Save(w io.Writer, tokenizerID string) error {
	ff := fileFormat{
		Version:       fileVersion,
		Name:          m.name,
		Order:         m.order,
		Alpha:         m.alpha,
		VocabSize:     m.vocabSize,
		ContextLength: m.contextLength,
		Tokenizer:     tokenizerID,
	}
	for n := range m.counts {
		keys := make([]string, 0, len(m.counts[n]))
		for k := range m.counts[n] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			ctx, err := parseKey(k)
			if err != nil {
				return err
			}
			ff.Contexts = append(ff.Contexts, contextCounts{Context: ctx, Next: m.counts[n][k]})
		}
	}
	enc := json.NewEncoder(w)
	return enc.Encode(ff)
}

// SaveFile writes the model to path.
func (m *Model) SaveFile(path, tokenizerID string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := m.Save(f, tokenizerID); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Load reads a model written by Save and returns it with its tokenizer id.
func Load(r io.Reader) (*Model, string, error) {
	var ff fileFormat
	if err := json.NewDecoder(r).Decode(&ff); err != nil {
		return nil, "", fmt.Errorf("ngram: decode: %w", err)
	}
	if ff.Version != fileVersion {
		return nil, "", fmt.Errorf("ngram: unsupported file version %d", ff.Version)
	}
	m, err := New(Options{Name: ff.Name, Order: ff.Order, Alpha: ff.Alpha, VocabSize: ff.VocabSize, ContextLength: ff.ContextLength})
	if err != nil {
		return nil, "", err
	}
	for _, cc := range ff.Contexts {
		n := len(cc.Context)
		if n >= m.order {
			return nil, "", fmt.Errorf("ngram: context of %d tokens exceeds order %d", n, m.order)
		}
		key := contextKey(cc.Context)
		row := make(map[int]uint32, len(cc.Next))
		var total uint32
		for id, c := range cc.Next {
			row[id] = c
			total += c
		}
		m.counts[n][key] = row
		m.totals[n][key] = total
	}
	return m, ff.Tokenizer, nil
}

// LoadFile reads a model from path.
func LoadFile(path string) (*Model, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()
	return Load(f)
}

func parseKey(k string) ([]int, error) {
	if k == "" {
		return []int{}, nil
	}
	parts := strings.Split(k, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("ngram: bad context key %q", k)
		}
		out[i] = n
	}
	return out, nil
}
