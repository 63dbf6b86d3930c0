package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"oxpilot/internal/config"
	"oxpilot/internal/prompt"
	"oxpilot/internal/vcs"
)

const testDiff = "diff --git a/README b/README\n+hello\n"

type fakeGit struct {
	diff    string
	diffErr error
	msg     string
	signoff bool
	commits int
}

func (f *fakeGit) StagedDiff(context.Context, bool) (string, error) { return f.diff, f.diffErr }

func (f *fakeGit) Commit(_ context.Context, msg string, signoff bool) (string, error) {
	f.msg, f.signoff = msg, signoff
	f.commits++
	return "[main abc123] " + msg + "\n", nil
}

// commitConfig trains a corpus model whose only continuation of the commit
// prompt for testDiff is a known message.
func commitConfig(t *testing.T, answer string) config.Config {
	t.Helper()
	tmpl, err := prompt.Lookup("plain")
	if err != nil {
		t.Fatal(err)
	}
	text, err := tmpl.Instruction(prompt.CommitInstruction(testDiff))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "commits.txt")
	if err := os.WriteFile(path, []byte(text+" "+answer), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Default()
	cfg.Model = path
	cfg.Template = "plain"
	cfg.NgramOrder = 8
	cfg.LogLevel = "off"
	cfg.Sampling.Temperature = 0
	cfg.Sampling.RepetitionPenalty = 1
	cfg.Sampling.MaxTokens = 64
	return cfg
}

func TestRunCommit_Yes(t *testing.T) {
	cfg := commitConfig(t, "Fix typo in readme")
	git := &fakeGit{diff: testDiff}
	var out, errOut bytes.Buffer
	err := runCommit(context.Background(), cfg, commitOptions{yes: true, signoff: true}, git, strings.NewReader(""), &out, &errOut)
	if err != nil {
		t.Fatalf("runCommit: %v", err)
	}
	if git.commits != 1 || git.msg != "Fix typo in readme" || !git.signoff {
		t.Fatalf("unexpected commit: %+v", git)
	}
	if !strings.Contains(out.String(), "[main abc123] Fix typo in readme") {
		t.Fatalf("summary missing from output: %q", out.String())
	}
}

func TestRunCommit_DryRun(t *testing.T) {
	cfg := commitConfig(t, "Fix typo in readme")
	git := &fakeGit{diff: testDiff}
	var out bytes.Buffer
	if err := runCommit(context.Background(), cfg, commitOptions{dryRun: true}, git, strings.NewReader(""), &out, &bytes.Buffer{}); err != nil {
		t.Fatalf("runCommit: %v", err)
	}
	if git.commits != 0 {
		t.Fatalf("dry run committed")
	}
	if strings.TrimSpace(out.String()) != "Fix typo in readme" {
		t.Fatalf("output=%q", out.String())
	}
}

func TestRunCommit_ConfirmAbort(t *testing.T) {
	cfg := commitConfig(t, "Fix typo in readme")
	git := &fakeGit{diff: testDiff}
	var out bytes.Buffer
	if err := runCommit(context.Background(), cfg, commitOptions{}, git, strings.NewReader("b\n"), &out, &bytes.Buffer{}); err != nil {
		t.Fatalf("runCommit: %v", err)
	}
	if git.commits != 0 || !strings.Contains(out.String(), "aborted") {
		t.Fatalf("expected abort, commits=%d out=%q", git.commits, out.String())
	}
}

func TestRunCommit_Errors(t *testing.T) {
	git := &fakeGit{diffErr: vcs.ErrNothingStaged}
	err := runCommit(context.Background(), config.Default(), commitOptions{yes: true}, git, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if !errors.Is(err, vcs.ErrNothingStaged) {
		t.Fatalf("expected ErrNothingStaged, got %v", err)
	}

	cfg := config.Default()
	cfg.LogLevel = "off"
	git = &fakeGit{diff: testDiff}
	err = runCommit(context.Background(), cfg, commitOptions{yes: true}, git, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "no model configured") {
		t.Fatalf("expected missing model error, got %v", err)
	}
	if git.commits != 0 {
		t.Fatalf("committed without a message")
	}
}

func TestConfirm(t *testing.T) {
	noEdit := func(string) (string, error) {
		t.Fatalf("editor should not run")
		return "", nil
	}
	cases := []struct {
		name     string
		input    string
		edit     func(string) (string, error)
		wantMsg  string
		accepted bool
		wantErr  bool
	}{
		{"enter accepts", "\n", noEdit, "msg", true, false},
		{"accept", "A\n", noEdit, "msg", true, false},
		{"abort", "b\n", noEdit, "msg", false, false},
		{"eof aborts", "", noEdit, "msg", false, false},
		{"reprompt then accept", "what\nyes\n", noEdit, "msg", true, false},
		{"edit", "e\n", func(m string) (string, error) { return m + " edited", nil }, "msg edited", true, false},
		{"empty edit aborts", "edit\n", func(string) (string, error) { return "", nil }, "msg", false, false},
		{"editor error", "e\n", func(string) (string, error) { return "", errors.New("boom") }, "msg", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			msg, ok, err := confirm(strings.NewReader(tc.input), &out, "msg", tc.edit)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v", err)
			}
			if msg != tc.wantMsg || ok != tc.accepted {
				t.Fatalf("got (%q, %v), want (%q, %v)", msg, ok, tc.wantMsg, tc.accepted)
			}
			if !strings.Contains(out.String(), "[A]ccept") {
				t.Fatalf("prompt not shown: %q", out.String())
			}
		})
	}
}

func TestConfirm_RepromptCount(t *testing.T) {
	var out bytes.Buffer
	if _, ok, _ := confirm(strings.NewReader("x\ny\n"), &out, "m", nil); !ok {
		t.Fatalf("expected accept")
	}
	if n := strings.Count(out.String(), "Commit with this message?"); n != 2 {
		t.Fatalf("prompted %d times, want 2", n)
	}
}

func TestStripComments(t *testing.T) {
	in := "Add parser\n\nBody line\n# ignored\n#also ignored\n\n"
	if got := stripComments(in); got != "Add parser\n\nBody line" {
		t.Fatalf("stripComments=%q", got)
	}
	if got := stripComments("# only comments\n"); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
