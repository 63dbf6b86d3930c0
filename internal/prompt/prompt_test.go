package prompt

import (
	"strings"
	"testing"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

func TestMistralInstruction(t *testing.T) {
	tmpl, err := Lookup("mistral")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	got, err := tmpl.Instruction("Say hi")
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if want := "<s>[INST] Say hi [/INST] "; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMistralConversation(t *testing.T) {
	tmpl, _ := Lookup("mistral")
	got, err := tmpl.Render([]types.ChatMessage{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "Hi"},
		{Role: "assistant", Content: "Hello"},
		{Role: "user", Content: "Bye"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "<s>[INST] Be brief.\n\nHi [/INST] Hello</s>[INST] Bye [/INST] "
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestMistralTrailingSystem(t *testing.T) {
	tmpl, _ := Lookup("mistral")
	cases := []struct {
		msgs []types.ChatMessage
		want string
	}{
		{
			[]types.ChatMessage{{Role: "system", Content: "Be brief."}},
			"<s>[INST] Be brief. [/INST] ",
		},
		{
			[]types.ChatMessage{
				{Role: "user", Content: "Hi"},
				{Role: "assistant", Content: "Hello"},
				{Role: "system", Content: "Now in French."},
				{Role: "system", Content: "Keep it short."},
			},
			"<s>[INST] Hi [/INST] Hello</s>[INST] Now in French.\n\nKeep it short. [/INST] ",
		},
	}
	for _, tc := range cases {
		got, err := tmpl.Render(tc.msgs)
		if err != nil {
			t.Fatalf("render: %v", err)
		}
		if got != tc.want {
			t.Fatalf("got %q want %q", got, tc.want)
		}
	}
}

func TestChatML(t *testing.T) {
	tmpl, _ := Lookup("chatml")
	got, err := tmpl.Render([]types.ChatMessage{{Role: "user", Content: "Hi"}})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "<|im_start|>user\nHi<|im_end|>\n<|im_start|>assistant\n"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
	if s := tmpl.Stops(); len(s) != 1 || s[0] != "<|im_end|>" {
		t.Fatalf("stops %q", s)
	}
}

func TestPlain(t *testing.T) {
	tmpl, _ := Lookup("plain")
	got, err := tmpl.Render([]types.ChatMessage{
		{Role: "system", Content: "Be brief."},
		{Role: "user", Content: "Hi"},
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "System: Be brief.\nUser: Hi\nAssistant:"
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestRenderRejectsBadInput(t *testing.T) {
	tmpl, _ := Lookup("plain")
	if _, err := tmpl.Render(nil); !generate.IsValidation(err) {
		t.Fatalf("empty messages: %v", err)
	}
	if _, err := tmpl.Render([]types.ChatMessage{{Role: "tool", Content: "x"}}); !generate.IsValidation(err) {
		t.Fatalf("unknown role: %v", err)
	}
}

func TestLookupUnknown(t *testing.T) {
	_, err := Lookup("nope")
	if err == nil || !strings.Contains(err.Error(), "chatml, mistral, plain") {
		t.Fatalf("unexpected error %v", err)
	}
}

func TestCommitInstruction(t *testing.T) {
	got := CommitInstruction("diff --git a/x b/x\n+y\n\n")
	if !strings.HasPrefix(got, "Write a git commit message") || !strings.HasSuffix(got, "+y\n") {
		t.Fatalf("unexpected instruction %q", got)
	}
}

func TestCleanCommitMessage(t *testing.T) {
	cases := map[string]string{
		"  Fix parser\n":             "Fix parser",
		"```\nAdd cache\n```":        "Add cache",
		"Update docs</s>[INST] more": "Update docs",
		"Bump deps<|im_end|>\n":      "Bump deps",
	}
	for in, want := range cases {
		if got := CleanCommitMessage(in); got != want {
			t.Fatalf("%q: got %q want %q", in, got, want)
		}
	}
}
