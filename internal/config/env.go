package config

import (
	"fmt"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "OX_"

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(dst func(*Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error { *dst(c) = v; return nil }
}

func integer(dst func(*Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func float(dst func(*Config) *float64) func(*Config, string) error {
	return func(c *Config, v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		*dst(c) = f
		return nil
	}
}

func duration(dst func(*Config) *Duration) func(*Config, string) error {
	return func(c *Config, v string) error { return dst(c).UnmarshalText([]byte(v)) }
}

func boolean(dst func(*Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

var envVars = []envVar{
	{"ADDR", str(func(c *Config) *string { return &c.Addr })},
	{"MODELS_DIR", str(func(c *Config) *string { return &c.ModelsDir })},
	{"MODEL", str(func(c *Config) *string { return &c.Model })},
	{"CHECKSUM", str(func(c *Config) *string { return &c.Checksum })},
	{"TOKENIZER", str(func(c *Config) *string { return &c.Tokenizer })},
	{"BACKEND", str(func(c *Config) *string { return &c.Backend })},
	{"DEVICE", str(func(c *Config) *string { return &c.Device })},
	{"TEMPLATE", str(func(c *Config) *string { return &c.Template })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
	{"LOG_FORMAT", str(func(c *Config) *string { return &c.LogFormat })},
	{"NGRAM_ORDER", integer(func(c *Config) *int { return &c.NgramOrder })},
	{"MAX_TOKENS", integer(func(c *Config) *int { return &c.Sampling.MaxTokens })},
	{"REPEAT_LAST_N", integer(func(c *Config) *int { return &c.Sampling.RepeatLastN })},
	{"MAX_QUEUE_DEPTH", integer(func(c *Config) *int { return &c.MaxQueueDepth })},
	{"TEMPERATURE", float(func(c *Config) *float64 { return &c.Sampling.Temperature })},
	{"TOP_P", float(func(c *Config) *float64 { return &c.Sampling.TopP })},
	{"REPETITION_PENALTY", float(func(c *Config) *float64 { return &c.Sampling.RepetitionPenalty })},
	{"MAX_WAIT", duration(func(c *Config) *Duration { return &c.MaxWait })},
	{"INFER_TIMEOUT", duration(func(c *Config) *Duration { return &c.InferTimeout })},
	{"ADD_BOS", boolean(func(c *Config) *bool { return &c.AddBOS })},
	{"CORS_ENABLED", boolean(func(c *Config) *bool { return &c.CORS.Enabled })},
	{"SEED", func(c *Config, v string) error {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return err
		}
		c.Sampling.Seed = n
		return nil
	}},
	{"CORS_ORIGINS", func(c *Config, v string) error { c.CORS.Origins = SplitCSV(v); return nil }},
}

// ApplyEnv overrides cfg with OX_* variables found through lookup
// (os.LookupEnv in production).
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(EnvPrefix + ev.name)
		if !ok || v == "" {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, ev.name, err)
		}
	}
	return nil
}

// SplitCSV splits a comma-separated list, dropping blanks.
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
