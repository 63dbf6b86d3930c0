package types

// Model describes the model served by this process.
type Model struct {
	// Stable identifier for the model.
	// example: commit-ngram
	ID string `json:"id" example:"commit-ngram"`
	// Human-friendly name.
	// example: Commit messages (4-gram)
	Name string `json:"name" example:"Commit messages (4-gram)"`
	// Absolute path to the model file on disk.
	// example: /home/user/.local/share/ox/models/commit.json
	Path string `json:"path" example:"/home/user/.local/share/ox/models/commit.json"`
	// Backend that executes the model.
	// example: ngram
	Backend string `json:"backend" example:"ngram"`
	// Tokenizer identifier (byte or a tokenizer.json path).
	// example: byte
	Tokenizer string `json:"tokenizer" example:"byte"`
	// Maximum number of tokens per sequence.
	// example: 2048
	ContextLength int `json:"context_length" example:"2048"`
	// Vocabulary size.
	// example: 258
	VocabSize int `json:"vocab_size" example:"258"`
}
