package prompt

import "strings"

const commitInstruction = `Write a git commit message for the staged changes below.
Use the imperative mood. Start with a summary line of at most 72 characters.
If the change needs explaining, add a blank line and a short body.
Reply with the commit message only.

`

// CommitInstruction wraps a staged diff into the instruction given to the
// model by `ox commit`.
func CommitInstruction(diff string) string {
	return commitInstruction + strings.TrimRight(diff, "\n") + "\n"
}

// CleanCommitMessage trims model output into something git accepts: no
// surrounding whitespace, no code fences, no template stop markers.
func CleanCommitMessage(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	for _, marker := range []string{"</s>", "<|im_end|>"} {
		if i := strings.Index(s, marker); i >= 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(s)
}
