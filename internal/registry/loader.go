// Package registry finds model files and turns them into a ready tokenizer
// and model for the coordinator.
//
// A model is either a saved n-gram (<id>.json) or a plain text corpus
// (<id>.txt) that is trained when it is opened.
package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"oxpilot/internal/common/fsutil"
	"oxpilot/internal/model"
	"oxpilot/internal/model/ngram"
	"oxpilot/internal/tokenizer"
	"oxpilot/pkg/types"
)

const (
	extSaved  = ".json"
	extCorpus = ".txt"

	// ByteTokenizer selects the built-in byte-level tokenizer.
	ByteTokenizer = "byte"
)

// ErrModelNotFound is returned when a model reference matches no file.
var ErrModelNotFound = errors.New("model not found")

// LoadDir scans a directory for model files and builds a registry from filenames.
// ID is the filename without extension; when both <id>.json and <id>.txt exist
// the saved model wins. Other metadata is filled in when the model is opened.
func LoadDir(dir string) ([]types.Model, error) {
	abs, err := fsutil.AbsPath(dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	byID := make(map[string]types.Model)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := strings.ToLower(filepath.Ext(name))
		if ext != extSaved && ext != extCorpus {
			continue
		}
		id := strings.TrimSuffix(name, filepath.Ext(name))
		if prev, ok := byID[id]; ok && strings.EqualFold(filepath.Ext(prev.Path), extSaved) {
			continue
		}
		byID[id] = types.Model{ID: id, Name: id, Path: filepath.Join(abs, name), Backend: ngram.BackendName}
	}
	models := make([]types.Model, 0, len(byID))
	for _, m := range byID {
		models = append(models, m)
	}
	slices.SortFunc(models, func(a, b types.Model) int { return strings.Compare(a.ID, b.ID) })
	return models, nil
}

// Resolve maps ref to a model file. ref is tried as a path first, then as an
// id inside modelsDir.
func Resolve(ref, modelsDir string) (string, error) {
	if ref == "" {
		return "", errors.New("no model configured")
	}
	p, err := fsutil.AbsPath(ref)
	if err != nil {
		return "", err
	}
	if st, err := os.Stat(p); err == nil && !st.IsDir() {
		return p, nil
	}
	if modelsDir != "" && !strings.ContainsRune(ref, filepath.Separator) {
		models, err := LoadDir(modelsDir)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", err
		}
		for _, m := range models {
			if m.ID == ref || filepath.Base(m.Path) == ref {
				return m.Path, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %q (models dir %s)", ErrModelNotFound, ref, modelsDir)
}

// Options selects and configures the model to open.
type Options struct {
	// Model is a file path or an id inside ModelsDir.
	Model     string
	ModelsDir string
	// Checksum is an optional sha256 of the model file.
	Checksum string
	// Tokenizer is "byte" or a path to a tokenizer.json.
	Tokenizer string
	// NgramOrder and ContextLength apply to corpus models trained on open.
	NgramOrder    int
	ContextLength int
	// CacheTTL and CacheSize configure prompt encoding memoization; a zero
	// CacheSize disables the cache.
	CacheTTL  time.Duration
	CacheSize uint64
	Logger    *zerolog.Logger
}

// Loaded is an opened model with its tokenizer.
type Loaded struct {
	Tokenizer tokenizer.Tokenizer
	Model     model.Model
	Info      types.Model
	cache     *tokenizer.Cached
}

// Close releases the model and stops the encode cache.
func (l *Loaded) Close() error {
	if l.cache != nil {
		l.cache.Close()
	}
	return l.Model.Close()
}

// Open resolves, verifies and loads the model named by opts.
func Open(opts Options) (*Loaded, error) {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	path, err := Resolve(opts.Model, opts.ModelsDir)
	if err != nil {
		return nil, err
	}
	if opts.Checksum != "" {
		if err := fsutil.VerifySHA256(path, opts.Checksum); err != nil {
			return nil, err
		}
		log.Debug().Str("path", path).Msg("model checksum verified")
	}
	tok, tokID, err := OpenTokenizer(opts.Tokenizer)
	if err != nil {
		return nil, err
	}
	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var m *ngram.Model
	start := time.Now()
	switch strings.ToLower(filepath.Ext(path)) {
	case extSaved:
		var stored string
		m, stored, err = ngram.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if stored != "" && stored != tokID {
			return nil, fmt.Errorf("model %s was built with tokenizer %q, configured tokenizer is %q", id, stored, tokID)
		}
		if v := m.Info().VocabSize; v != tok.VocabSize() {
			return nil, fmt.Errorf("model %s has vocab size %d, tokenizer has %d", id, v, tok.VocabSize())
		}
	case extCorpus:
		m, err = TrainFile(tok, path, ngram.Options{Name: id, Order: opts.NgramOrder, ContextLength: opts.ContextLength})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported model file %s: want %s or %s", filepath.Base(path), extSaved, extCorpus)
	}

	l := &Loaded{Tokenizer: tok, Model: m}
	if opts.CacheSize > 0 {
		l.cache = tokenizer.NewCached(tok, opts.CacheTTL, opts.CacheSize)
		l.Tokenizer = l.cache
	}
	info := m.Info()
	l.Info = types.Model{
		ID:            id,
		Name:          info.Name,
		Path:          path,
		Backend:       info.Backend,
		Tokenizer:     tokID,
		ContextLength: info.ContextLength,
		VocabSize:     info.VocabSize,
	}
	log.Info().
		Str("model", id).
		Str("path", path).
		Str("tokenizer", tokID).
		Int("context_length", info.ContextLength).
		Dur("took", time.Since(start)).
		Msg("model ready")
	return l, nil
}

// OpenTokenizer returns the named tokenizer ("byte" or a tokenizer.json path) and the id recorded in
// saved models built with it.
func OpenTokenizer(name string) (tokenizer.Tokenizer, string, error) {
	if name == "" || name == ByteTokenizer {
		return tokenizer.NewBytes(), ByteTokenizer, nil
	}
	p, err := fsutil.AbsPath(name)
	if err != nil {
		return nil, "", err
	}
	if !fsutil.PathExists(p) {
		return nil, "", fmt.Errorf("tokenizer %q is neither %q nor an existing tokenizer.json path", name, ByteTokenizer)
	}
	v, err := tokenizer.LoadVocab(p)
	if err != nil {
		return nil, "", fmt.Errorf("load tokenizer: %w", err)
	}
	return v, "vocab:" + filepath.Base(filepath.Dir(p)) + "/" + filepath.Base(p), nil
}

// TrainFile builds an n-gram model from the corpus at path.
func TrainFile(tok tokenizer.Tokenizer, path string, opts ngram.Options) (*ngram.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	opts.VocabSize = tok.VocabSize()
	m, err := ngram.New(opts)
	if err != nil {
		return nil, err
	}
	if _, err := m.Train(tok, SplitCorpus(string(data))); err != nil {
		return nil, fmt.Errorf("train %s: %w", filepath.Base(path), err)
	}
	return m, nil
}

// SplitCorpus cuts a corpus into documents. NUL bytes separate documents when
// present (the output of git log -z); otherwise a line holding only "---"
// does. Blank documents are dropped.
func SplitCorpus(text string) []string {
	var parts []string
	if strings.ContainsRune(text, 0) {
		parts = strings.Split(text, "\x00")
	} else {
		text = strings.ReplaceAll(text, "\r\n", "\n")
		var cur []string
		for line := range strings.SplitSeq(text, "\n") {
			if line == "---" {
				parts = append(parts, strings.Join(cur, "\n"))
				cur = cur[:0]
				continue
			}
			cur = append(cur, line)
		}
		parts = append(parts, strings.Join(cur, "\n"))
	}
	docs := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			docs = append(docs, p)
		}
	}
	return docs
}
