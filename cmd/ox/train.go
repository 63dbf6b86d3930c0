package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"oxpilot/internal/common/fsutil"
	"oxpilot/internal/model/ngram"
	"oxpilot/internal/registry"
	"oxpilot/internal/vcs"
)

type trainOptions struct {
	output        string
	name          string
	contextLength int
	gitLog        int
	fromGit       bool
}

func newTrainCmd() *cobra.Command {
	var opts trainOptions
	cmd := &cobra.Command{
		Use:   "train [corpus...]",
		Short: "Build an n-gram model file from text corpora or the git history",
		Long: `Build an n-gram model file from text corpora or the git history.

Documents in a corpus are separated by NUL bytes or by lines holding only
"---". With --git-log the messages of the current repository are added.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.fromGit = cmd.Flags().Changed("git-log")
			if len(args) == 0 && !opts.fromGit {
				return errors.New("nothing to train on: pass corpus files or --git-log")
			}
			return runTrain(cmd, opts, args)
		},
	}
	d := defaults()
	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "Model file to write (default <name>.json in --models-dir)")
	f.StringVar(&opts.name, "name", "commits", "Model name")
	f.Int("ngram-order", d.NgramOrder, "N-gram order")
	f.IntVar(&opts.contextLength, "context-length", 0, "Context window in tokens (0 = backend default)")
	f.String("tokenizer", d.Tokenizer, `"byte" or a path to a tokenizer.json`)
	f.IntVar(&opts.gitLog, "git-log", 0, "Add the last N commit messages of this repository (0 = all)")
	f.String("models-dir", d.ModelsDir, "Directory the model is written to when --output is unset")
	return cmd
}

func runTrain(cmd *cobra.Command, opts trainOptions, corpora []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	tok, tokID, err := registry.OpenTokenizer(cfg.Tokenizer)
	if err != nil {
		return err
	}
	m, err := ngram.New(ngram.Options{
		Name:          opts.name,
		Order:         cfg.NgramOrder,
		VocabSize:     tok.VocabSize(),
		ContextLength: opts.contextLength,
	})
	if err != nil {
		return err
	}

	var docs []string
	for _, path := range corpora {
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		docs = append(docs, registry.SplitCorpus(string(b))...)
	}
	if opts.fromGit {
		msgs, err := vcs.Git{}.Messages(cmd.Context(), opts.gitLog)
		if err != nil {
			return err
		}
		docs = append(docs, msgs...)
	}
	if len(docs) == 0 {
		return errors.New("corpus is empty")
	}

	start := time.Now()
	n, err := m.Train(tok, docs)
	if err != nil {
		return err
	}

	out := opts.output
	if out == "" {
		dir, err := fsutil.AbsPath(cfg.ModelsDir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		out = filepath.Join(dir, opts.name+".json")
	}
	if err := m.SaveFile(out, tokID); err != nil {
		return err
	}
	log.Info().
		Int("documents", len(docs)).
		Int("tokens", n).
		Dur("took", time.Since(start)).
		Str("path", out).
		Msg("model trained")
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}
