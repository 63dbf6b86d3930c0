package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"oxpilot/internal/config"
	"oxpilot/internal/generate"
	"oxpilot/internal/manager"
	"oxpilot/internal/prompt"
	"oxpilot/internal/stream"
	"oxpilot/internal/vcs"
)

type commitOptions struct {
	yes             bool
	signoff         bool
	functionContext bool
	dryRun          bool
}

func newCommitCmd() *cobra.Command {
	var opts commitOptions
	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Write a commit message for the staged changes and commit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return runCommit(cmd.Context(), cfg, opts, vcs.Git{}, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&opts.yes, "yes", "y", false, "Commit without asking")
	f.BoolVarP(&opts.signoff, "signoff", "s", false, "Add a Signed-off-by trailer")
	f.BoolVar(&opts.functionContext, "function-context", false, "Show whole functions around changes to the model")
	f.BoolVar(&opts.dryRun, "dry-run", false, "Print the message without committing")
	addModelFlags(cmd)
	return cmd
}

// committer is the part of vcs.Git the commit flow needs.
type committer interface {
	StagedDiff(ctx context.Context, functionContext bool) (string, error)
	Commit(ctx context.Context, message string, signoff bool) (string, error)
}

func runCommit(ctx context.Context, cfg config.Config, opts commitOptions, git committer, in io.Reader, out, errOut io.Writer) error {
	diff, err := git.StagedDiff(ctx, opts.functionContext)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}
	msg, err := generateMessage(ctx, cfg, diff, log, errOut)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s\n\n", msg)
	if opts.dryRun {
		return nil
	}
	if !opts.yes {
		if f, ok := in.(*os.File); ok && !term.IsTerminal(int(f.Fd())) {
			return errors.New("stdin is not a terminal; pass --yes to commit without asking")
		}
		var accepted bool
		msg, accepted, err = confirm(in, out, msg, editMessage)
		if err != nil {
			return err
		}
		if !accepted {
			fmt.Fprintln(out, "aborted")
			return nil
		}
	}
	summary, err := git.Commit(ctx, msg, opts.signoff)
	if err != nil {
		return err
	}
	fmt.Fprint(out, summary)
	return nil
}

// generateMessage runs the staged diff through the model, holding a single
// generation slot like one server request.
func generateMessage(ctx context.Context, cfg config.Config, diff string, log zerolog.Logger, errOut io.Writer) (string, error) {
	mgr, loaded, err := openService(cfg, log, 0)
	if err != nil {
		return "", err
	}
	if loaded != nil {
		defer loaded.Close()
	}
	defer mgr.Close()

	tmpl, err := prompt.Lookup(cfg.Template)
	if err != nil {
		return "", err
	}
	text, err := tmpl.Instruction(prompt.CommitInstruction(diff))
	if err != nil {
		return "", err
	}
	s, err := mgr.Begin(ctx, generate.Request{
		Prompt:    text,
		Sampling:  cfg.SamplerConfig(),
		MaxTokens: cfg.Sampling.MaxTokens,
		Stop:      tmpl.Stops(),
	})
	if manager.IsUnavailable(err) {
		return "", fmt.Errorf("no model configured; set --model or OX_MODEL: %w", err)
	}
	if err != nil {
		return "", err
	}
	defer s.Close()

	if f, ok := errOut.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		sp := newSpinner(errOut, "writing commit message")
		defer sp.Stop()
	}
	raw, o, err := stream.Collect(ctx, s)
	if err != nil {
		return "", err
	}
	msg := prompt.CleanCommitMessage(raw)
	log.Debug().
		Str("finish_reason", o.Reason.FinishReason()).
		Int("prompt_tokens", o.Usage.PromptTokens).
		Int("completion_tokens", o.Usage.CompletionTokens).
		Msg("commit message generated")
	if msg == "" {
		return "", errors.New("the model produced an empty commit message")
	}
	return msg, nil
}

// confirm asks whether to use msg. edit is called with the current message
// when the user picks edit.
func confirm(in io.Reader, out io.Writer, msg string, edit func(string) (string, error)) (string, bool, error) {
	r := bufio.NewReader(in)
	for {
		fmt.Fprint(out, "Commit with this message? [A]ccept, [e]dit, a[b]ort: ")
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			if errors.Is(err, io.EOF) {
				return msg, false, nil
			}
			return msg, false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "a", "accept", "y", "yes", "":
			return msg, true, nil
		case "e", "edit":
			edited, err := edit(msg)
			if err != nil {
				return msg, false, err
			}
			if edited == "" {
				fmt.Fprintln(out, "empty message")
				return msg, false, nil
			}
			return edited, true, nil
		case "b", "abort", "n", "no", "q":
			return msg, false, nil
		}
	}
}

// editMessage opens msg in $VISUAL or $EDITOR and returns the saved text
// without comment lines.
func editMessage(msg string) (string, error) {
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}
	f, err := os.CreateTemp("", "ox-commit-*.txt")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := fmt.Fprintf(f, "%s\n\n# Lines starting with '#' are ignored. An empty message aborts.\n", msg); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], f.Name())...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s: %w", editor, err)
	}
	b, err := os.ReadFile(f.Name())
	if err != nil {
		return "", err
	}
	return stripComments(string(b)), nil
}

func stripComments(s string) string {
	var keep []string
	for line := range strings.SplitSeq(s, "\n") {
		if !strings.HasPrefix(line, "#") {
			keep = append(keep, line)
		}
	}
	return strings.TrimSpace(strings.Join(keep, "\n"))
}
