package tokenizer

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
)

// spaceMarker is the SentencePiece word-boundary symbol.
const spaceMarker = "▁"

// Vocab tokenizes with a fixed vocabulary loaded from a Hugging Face
// tokenizer.json. Encoding is greedy longest match over the vocabulary with
// <0xNN> byte fallback; it does not replay BPE merge ranks, so ids may differ
// from the reference implementation while decoding stays exact.
type Vocab struct {
	pieces   [][]byte
	ids      map[string]int // every token, including specials
	match    map[string]int // tokens eligible for greedy matching
	maxLen   int
	special  []string // longest first
	byteIDs  [256]int
	sentence bool // vocabulary uses ▁ for spaces
	bos, eos int
	unk      int
}

type tokenizerJSON struct {
	Model struct {
		Type     string          `json:"type"`
		Vocab    json.RawMessage `json:"vocab"`
		UnkToken string          `json:"unk_token"`
	} `json:"model"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
		Special bool   `json:"special"`
	} `json:"added_tokens"`
}

type tokenizerConfigJSON struct {
	BOS any `json:"bos_token"`
	EOS any `json:"eos_token"`
}

// Common special token spellings, checked when tokenizer_config.json is absent.
var (
	knownBOS = []string{"<s>", "<|begin_of_text|>", "<|startoftext|>", "<bos>"}
	knownEOS = []string{"</s>", "<|endoftext|>", "<|end_of_text|>", "<|im_end|>", "<|eot_id|>", "<eos>"}
)

// LoadVocab reads a tokenizer.json. A tokenizer_config.json next to it, when
// present, names the BOS/EOS tokens.
func LoadVocab(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg []byte
	if raw, err := os.ReadFile(filepath.Join(filepath.Dir(path), "tokenizer_config.json")); err == nil {
		cfg = raw
	}
	return ParseVocab(data, cfg)
}

// ParseVocab builds a Vocab from tokenizer.json bytes and optional
// tokenizer_config.json bytes.
func ParseVocab(tokJSON, tokConfig []byte) (*Vocab, error) {
	var tj tokenizerJSON
	if err := json.Unmarshal(tokJSON, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer json: %w", err)
	}
	entries, err := vocabEntries(tj.Model.Vocab)
	if err != nil {
		return nil, err
	}
	for _, at := range tj.AddedTokens {
		entries[at.Content] = at.ID
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("tokenizer json has an empty vocabulary")
	}

	maxID := -1
	for _, id := range entries {
		if id < 0 {
			return nil, fmt.Errorf("negative token id %d", id)
		}
		maxID = max(maxID, id)
	}
	v := &Vocab{
		pieces: make([][]byte, maxID+1),
		ids:    make(map[string]int, len(entries)),
		match:  make(map[string]int, len(entries)),
		bos:    -1,
		eos:    -1,
		unk:    -1,
	}
	for i := range v.byteIDs {
		v.byteIDs[i] = -1
	}
	for tok, id := range entries {
		v.ids[tok] = id
		v.pieces[id] = []byte(tok)
		if strings.Contains(tok, spaceMarker) {
			v.sentence = true
		}
	}
	for tok, id := range entries {
		if b, ok := parseByteToken(tok); ok {
			v.byteIDs[b] = id
			v.pieces[id] = []byte{b}
			continue
		}
		if v.sentence {
			v.pieces[id] = []byte(strings.ReplaceAll(tok, spaceMarker, " "))
		}
		v.match[tok] = id
		v.maxLen = max(v.maxLen, len(tok))
	}
	for _, at := range tj.AddedTokens {
		if at.Special {
			v.special = append(v.special, at.Content)
			v.pieces[at.ID] = []byte(at.Content)
			delete(v.match, at.Content)
		}
	}
	if id, ok := v.ids[tj.Model.UnkToken]; ok && tj.Model.UnkToken != "" {
		v.unk = id
	}
	var tc tokenizerConfigJSON
	if len(tokConfig) > 0 {
		if err := json.Unmarshal(tokConfig, &tc); err != nil {
			return nil, fmt.Errorf("parse tokenizer config json: %w", err)
		}
	}
	v.bos = v.lookupSpecial(tokenContent(tc.BOS), knownBOS)
	v.eos = v.lookupSpecial(tokenContent(tc.EOS), knownEOS)
	// BOS/EOS are only produced from their literal spelling, never by greedy matching
	for _, id := range []int{v.bos, v.eos} {
		if id < 0 {
			continue
		}
		tok := string(v.pieces[id])
		if _, ok := v.match[tok]; ok {
			delete(v.match, tok)
			v.special = append(v.special, tok)
		}
	}
	sort.Slice(v.special, func(i, j int) bool { return len(v.special[i]) > len(v.special[j]) })
	return v, nil
}

// vocabEntries accepts both the BPE map form and the Unigram [piece, score] list form.
func vocabEntries(raw json.RawMessage) (map[string]int, error) {
	out := map[string]int{}
	if len(raw) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err == nil {
		return out, nil
	}
	var list [][]any
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("unsupported vocab layout: %w", err)
	}
	out = make(map[string]int, len(list))
	for i, e := range list {
		if len(e) == 0 {
			continue
		}
		s, ok := e[0].(string)
		if !ok {
			return nil, fmt.Errorf("vocab entry %d is not a string", i)
		}
		out[s] = i
	}
	return out, nil
}

// tokenContent handles both "bos_token": "<s>" and the AddedToken object form.
func tokenContent(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if s, ok := t["content"].(string); ok {
			return s
		}
	}
	return ""
}

func (v *Vocab) lookupSpecial(named string, fallback []string) int {
	if named != "" {
		if id, ok := v.ids[named]; ok {
			return id
		}
	}
	for _, s := range fallback {
		if id, ok := v.ids[s]; ok {
			return id
		}
	}
	return -1
}

// parseByteToken recognizes SentencePiece byte fallback tokens like <0x0A>.
func parseByteToken(tok string) (byte, bool) {
	if len(tok) != 6 || !strings.HasPrefix(tok, "<0x") || tok[5] != '>' {
		return 0, false
	}
	n, err := strconv.ParseUint(tok[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(n), true
}

func (v *Vocab) Encode(text string) ([]int, error) {
	var ids []int
	for len(text) > 0 {
		if sp, ok := v.specialPrefix(text); ok {
			ids = append(ids, v.ids[sp])
			text = text[len(sp):]
			continue
		}
		// encode up to the next special token
		end := len(text)
		for i := 1; i < len(text); i++ {
			if _, ok := v.specialPrefix(text[i:]); ok {
				end = i
				break
			}
		}
		var err error
		ids, err = v.encodePlain(ids, text[:end])
		if err != nil {
			return nil, err
		}
		text = text[end:]
	}
	return ids, nil
}

func (v *Vocab) specialPrefix(s string) (string, bool) {
	for _, sp := range v.special {
		if strings.HasPrefix(s, sp) {
			return sp, true
		}
	}
	return "", false
}

func (v *Vocab) encodePlain(ids []int, text string) ([]int, error) {
	if v.sentence {
		text = strings.ReplaceAll(text, " ", spaceMarker)
	}
	for pos := 0; pos < len(text); {
		matched := false
		for n := min(v.maxLen, len(text)-pos); n > 0; n-- {
			if id, ok := v.match[text[pos:pos+n]]; ok {
				ids = append(ids, id)
				pos += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		if strings.HasPrefix(text[pos:], spaceMarker) && v.byteIDs[' '] >= 0 {
			ids = append(ids, v.byteIDs[' '])
			pos += len(spaceMarker)
			continue
		}
		b := text[pos]
		switch {
		case v.byteIDs[b] >= 0:
			ids = append(ids, v.byteIDs[b])
		case v.unk >= 0:
			ids = append(ids, v.unk)
		default:
			return nil, fmt.Errorf("byte 0x%02X has no token and vocabulary has no unk token", b)
		}
		pos++
	}
	return ids, nil
}

func (v *Vocab) Piece(id int) ([]byte, error) {
	if id < 0 || id >= len(v.pieces) {
		return nil, unknownTokenError{id: id}
	}
	if id == v.bos || id == v.eos {
		return nil, nil
	}
	return v.pieces[id], nil
}

func (v *Vocab) VocabSize() int { return len(v.pieces) }
func (v *Vocab) BOS() int       { return v.bos }
func (v *Vocab) EOS() int       { return v.eos }
