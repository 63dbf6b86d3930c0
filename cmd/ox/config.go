package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"oxpilot/internal/config"
	"oxpilot/internal/logging"
)

var defaults = config.Default

// addModelFlags registers the flags that choose and tune the model. Defaults
// shown in help come from config.Default; only flags set on the command line
// override the config file and environment.
func addModelFlags(cmd *cobra.Command) {
	d := defaults()
	f := cmd.Flags()
	f.StringP("model", "m", d.Model, "Model file path or id inside --models-dir")
	f.String("models-dir", d.ModelsDir, "Directory holding <id>.json and <id>.txt models")
	f.String("checksum", d.Checksum, "Expected sha256 of the model file")
	f.String("tokenizer", d.Tokenizer, `"byte" or a path to a tokenizer.json`)
	f.String("backend", d.Backend, "Model backend")
	f.String("device", d.Device, "Compute device")
	f.Int("ngram-order", d.NgramOrder, "N-gram order for corpus models trained at startup")
	f.String("template", d.Template, "Prompt template: plain|mistral|chatml")
	f.Bool("add-bos", d.AddBOS, "Prepend the BOS token to prompts")
	f.Int("max-tokens", d.Sampling.MaxTokens, "Default maximum tokens to generate")
	f.Float64("temperature", d.Sampling.Temperature, "Default sampling temperature")
	f.Float64("top-p", d.Sampling.TopP, "Default nucleus sampling mass")
	f.Float64("repetition-penalty", d.Sampling.RepetitionPenalty, "Default repetition penalty")
	f.Int("repeat-last-n", d.Sampling.RepeatLastN, "Tokens considered by the repetition penalty (0 = all)")
	f.Uint64("seed", d.Sampling.Seed, "Default sampling seed")
}

// loadConfig layers defaults, the config file, OX_* variables and changed
// flags, in that order, and validates the result.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := defaults()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		if err := config.LoadInto(path, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := applyFlags(cmd, &cfg); err != nil {
		return cfg, err
	}
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.LogLevel = "debug"
	}
	return cfg, cfg.Validate()
}

type flagBinding struct {
	name  string
	apply func(cmd *cobra.Command, c *config.Config) error
}

func strFlag(name string, dst func(*config.Config) *string) flagBinding {
	return flagBinding{name, func(cmd *cobra.Command, c *config.Config) (err error) {
		*dst(c), err = cmd.Flags().GetString(name)
		return err
	}}
}

func intFlag(name string, dst func(*config.Config) *int) flagBinding {
	return flagBinding{name, func(cmd *cobra.Command, c *config.Config) (err error) {
		*dst(c), err = cmd.Flags().GetInt(name)
		return err
	}}
}

func floatFlag(name string, dst func(*config.Config) *float64) flagBinding {
	return flagBinding{name, func(cmd *cobra.Command, c *config.Config) (err error) {
		*dst(c), err = cmd.Flags().GetFloat64(name)
		return err
	}}
}

func boolFlag(name string, dst func(*config.Config) *bool) flagBinding {
	return flagBinding{name, func(cmd *cobra.Command, c *config.Config) (err error) {
		*dst(c), err = cmd.Flags().GetBool(name)
		return err
	}}
}

func durationFlag(name string, dst func(*config.Config) *config.Duration) flagBinding {
	return flagBinding{name, func(cmd *cobra.Command, c *config.Config) error {
		d, err := cmd.Flags().GetDuration(name)
		dst(c).Duration = d
		return err
	}}
}

func csvFlag(name string, dst func(*config.Config) *[]string) flagBinding {
	return flagBinding{name, func(cmd *cobra.Command, c *config.Config) error {
		v, err := cmd.Flags().GetString(name)
		*dst(c) = config.SplitCSV(v)
		return err
	}}
}

var flagBindings = []flagBinding{
	strFlag("log-level", func(c *config.Config) *string { return &c.LogLevel }),
	strFlag("log-format", func(c *config.Config) *string { return &c.LogFormat }),
	strFlag("addr", func(c *config.Config) *string { return &c.Addr }),
	strFlag("model", func(c *config.Config) *string { return &c.Model }),
	strFlag("models-dir", func(c *config.Config) *string { return &c.ModelsDir }),
	strFlag("checksum", func(c *config.Config) *string { return &c.Checksum }),
	strFlag("tokenizer", func(c *config.Config) *string { return &c.Tokenizer }),
	strFlag("backend", func(c *config.Config) *string { return &c.Backend }),
	strFlag("device", func(c *config.Config) *string { return &c.Device }),
	strFlag("template", func(c *config.Config) *string { return &c.Template }),
	intFlag("ngram-order", func(c *config.Config) *int { return &c.NgramOrder }),
	boolFlag("add-bos", func(c *config.Config) *bool { return &c.AddBOS }),
	intFlag("max-tokens", func(c *config.Config) *int { return &c.Sampling.MaxTokens }),
	floatFlag("temperature", func(c *config.Config) *float64 { return &c.Sampling.Temperature }),
	floatFlag("top-p", func(c *config.Config) *float64 { return &c.Sampling.TopP }),
	floatFlag("repetition-penalty", func(c *config.Config) *float64 { return &c.Sampling.RepetitionPenalty }),
	intFlag("repeat-last-n", func(c *config.Config) *int { return &c.Sampling.RepeatLastN }),
	{"seed", func(cmd *cobra.Command, c *config.Config) (err error) {
		c.Sampling.Seed, err = cmd.Flags().GetUint64("seed")
		return err
	}},
	intFlag("max-queue-depth", func(c *config.Config) *int { return &c.MaxQueueDepth }),
	durationFlag("max-wait", func(c *config.Config) *config.Duration { return &c.MaxWait }),
	durationFlag("drain-timeout", func(c *config.Config) *config.Duration { return &c.DrainTimeout }),
	durationFlag("infer-timeout", func(c *config.Config) *config.Duration { return &c.InferTimeout }),
	boolFlag("cors", func(c *config.Config) *bool { return &c.CORS.Enabled }),
	csvFlag("cors-origins", func(c *config.Config) *[]string { return &c.CORS.Origins }),
}

// applyFlags copies every flag the user set into cfg.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	for _, b := range flagBindings {
		f := cmd.Flags().Lookup(b.name)
		if f == nil || !f.Changed {
			continue
		}
		if err := b.apply(cmd, cfg); err != nil {
			return fmt.Errorf("--%s: %w", b.name, err)
		}
	}
	return nil
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	return logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
}
