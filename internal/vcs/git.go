// Package vcs shells out to git for the commit workflow.
package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ErrNothingStaged is returned when the index has no changes to commit.
var ErrNothingStaged = errors.New("no staged changes; stage files with git add first")

// Git runs git in Dir (the current directory when empty).
type Git struct {
	Dir string
	// Bin defaults to "git" on PATH.
	Bin string
}

// diffArgs keep the diff small and stable for the model.
var diffArgs = []string{
	"diff",
	"--staged",
	"--ignore-all-space",
	"--ignore-blank-lines",
	"--diff-algorithm=histogram",
	"--no-ext-diff",
	"--no-color",
}

// StagedDiff returns the staged diff. With functionContext the whole enclosing
// function of every hunk is included.
func (g Git) StagedDiff(ctx context.Context, functionContext bool) (string, error) {
	args := append([]string(nil), diffArgs...)
	if functionContext {
		args = append(args, "--function-context")
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", ErrNothingStaged
	}
	return out, nil
}

// Commit records the staged changes with message and returns git's summary.
func (g Git) Commit(ctx context.Context, message string, signoff bool) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", errors.New("empty commit message")
	}
	args := []string{"commit", "-m", message}
	if signoff {
		args = append(args, "--signoff")
	}
	return g.run(ctx, args...)
}

// Messages returns the bodies of the last n commits on HEAD, newest first.
// n <= 0 reads the whole history.
func (g Git) Messages(ctx context.Context, n int) ([]string, error) {
	args := []string{"log", "-z", "--format=%B"}
	if n > 0 {
		args = append(args, "-n", strconv.Itoa(n))
	}
	out, err := g.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	var msgs []string
	for m := range strings.SplitSeq(out, "\x00") {
		if m = strings.TrimSpace(m); m != "" {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}

func (g Git) run(ctx context.Context, args ...string) (string, error) {
	bin := g.Bin
	if bin == "" {
		bin = "git"
	}
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = g.Dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("git %s: %w: %s", args[0], err, msg)
	}
	return stdout.String(), nil
}
