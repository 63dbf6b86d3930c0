// Package config holds the server and CLI settings. Values are layered:
// defaults, then a config file, then OX_* environment variables, then
// command-line flags. The result is immutable once the server starts.
package config

import (
	"errors"
	"fmt"
	"time"

	"oxpilot/internal/prompt"
	"oxpilot/internal/sampler"
)

// Duration accepts "30s"-style strings in every config format.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// CORS is opt-in cross-origin configuration.
type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Sampling holds the server-wide sampling defaults.
type Sampling struct {
	MaxTokens         int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	Temperature       float64 `json:"temperature" yaml:"temperature" toml:"temperature"`
	TopP              float64 `json:"top_p" yaml:"top_p" toml:"top_p"`
	RepetitionPenalty float64 `json:"repetition_penalty" yaml:"repetition_penalty" toml:"repetition_penalty"`
	RepeatLastN       int     `json:"repeat_last_n" yaml:"repeat_last_n" toml:"repeat_last_n"`
	Seed              uint64  `json:"seed" yaml:"seed" toml:"seed"`
}

// Config holds runtime parameters for the service.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	// Model is a file path or an id resolved inside ModelsDir.
	Model     string `json:"model" yaml:"model" toml:"model"`
	Checksum  string `json:"checksum" yaml:"checksum" toml:"checksum"`
	Tokenizer string `json:"tokenizer" yaml:"tokenizer" toml:"tokenizer"`
	Backend   string `json:"backend" yaml:"backend" toml:"backend"`
	Device    string `json:"device" yaml:"device" toml:"device"`
	// NgramOrder applies when the model is trained from a corpus at startup.
	NgramOrder int    `json:"ngram_order" yaml:"ngram_order" toml:"ngram_order"`
	Template   string `json:"template" yaml:"template" toml:"template"`
	AddBOS     bool   `json:"add_bos" yaml:"add_bos" toml:"add_bos"`

	Sampling Sampling `json:"sampling" yaml:"sampling" toml:"sampling"`

	MaxQueueDepth int      `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWait       Duration `json:"max_wait" yaml:"max_wait" toml:"max_wait"`
	DrainTimeout  Duration `json:"drain_timeout" yaml:"drain_timeout" toml:"drain_timeout"`
	InferTimeout  Duration `json:"infer_timeout" yaml:"infer_timeout" toml:"infer_timeout"`
	MaxBodyBytes  int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`

	TokenCacheTTL  Duration `json:"token_cache_ttl" yaml:"token_cache_ttl" toml:"token_cache_ttl"`
	TokenCacheSize uint64   `json:"token_cache_size" yaml:"token_cache_size" toml:"token_cache_size"`

	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	CORS CORS `json:"cors" yaml:"cors" toml:"cors"`
}

// Default returns the built-in settings.
func Default() Config {
	s := sampler.DefaultConfig()
	return Config{
		Addr:       ":9090",
		ModelsDir:  "~/.local/share/ox/models",
		Tokenizer:  "byte",
		Backend:    "ngram",
		Device:     "cpu",
		NgramOrder: 4,
		Template:   "mistral",
		AddBOS:     true,
		Sampling: Sampling{
			MaxTokens:         1000,
			Temperature:       s.Temperature,
			TopP:              s.TopP,
			RepetitionPenalty: s.RepetitionPenalty,
			RepeatLastN:       s.RepeatLastN,
			Seed:              s.Seed,
		},
		MaxQueueDepth:  32,
		MaxWait:        Duration{30 * time.Second},
		DrainTimeout:   Duration{5 * time.Second},
		MaxBodyBytes:   1 << 20,
		TokenCacheTTL:  Duration{10 * time.Minute},
		TokenCacheSize: 1024,
		LogLevel:       "info",
		LogFormat:      "auto",
		CORS: CORS{
			Methods: []string{"GET", "POST", "OPTIONS"},
			Headers: []string{"Content-Type", "Authorization", "X-Log-Level"},
		},
	}
}

// SamplerConfig returns the default per-request sampling configuration.
func (c Config) SamplerConfig() sampler.Config {
	return sampler.Config{
		Temperature:       c.Sampling.Temperature,
		TopP:              c.Sampling.TopP,
		RepetitionPenalty: c.Sampling.RepetitionPenalty,
		RepeatLastN:       c.Sampling.RepeatLastN,
		Seed:              c.Sampling.Seed,
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if err := c.SamplerConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Sampling.MaxTokens < 1 {
		errs = append(errs, fmt.Errorf("max_tokens must be >= 1, got %d", c.Sampling.MaxTokens))
	}
	if c.MaxQueueDepth < 0 {
		errs = append(errs, fmt.Errorf("max_queue_depth must be >= 0, got %d", c.MaxQueueDepth))
	}
	if c.MaxWait.Duration <= 0 {
		errs = append(errs, fmt.Errorf("max_wait must be positive, got %s", c.MaxWait))
	}
	if c.InferTimeout.Duration < 0 {
		errs = append(errs, fmt.Errorf("infer_timeout must be >= 0, got %s", c.InferTimeout))
	}
	if c.Backend != "ngram" {
		errs = append(errs, fmt.Errorf("unsupported backend %q", c.Backend))
	}
	if c.Device != "cpu" {
		errs = append(errs, fmt.Errorf("unsupported device %q: the ngram backend runs on cpu", c.Device))
	}
	if c.NgramOrder < 1 {
		errs = append(errs, fmt.Errorf("ngram_order must be >= 1, got %d", c.NgramOrder))
	}
	if _, err := prompt.Lookup(c.Template); err != nil {
		errs = append(errs, err)
	}
	switch c.LogFormat {
	case "auto", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be auto, console or json, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
