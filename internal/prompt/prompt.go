// Package prompt renders role-tagged chat messages into the flat prompt text
// a completion model consumes.
package prompt

import (
	"fmt"
	"slices"
	"strings"
	"text/template"

	"oxpilot/internal/generate"
	"oxpilot/pkg/types"
)

// Template turns a conversation into prompt text ending where the assistant
// answer should begin.
type Template struct {
	name   string
	render func(w *strings.Builder, msgs []types.ChatMessage) error
	stops  []string
}

var funcs = template.FuncMap{
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
}

const plainText = `{{range .}}{{title .Role}}: {{.Content}}
{{end}}Assistant:`

const chatMLText = `{{range .}}<|im_start|>{{.Role}}
{{.Content}}<|im_end|>
{{end}}<|im_start|>assistant
`

var templates = map[string]*Template{
	"plain":   mustParse("plain", plainText, "\nUser:"),
	"mistral": newMistral(),
	"chatml":  mustParse("chatml", chatMLText, "<|im_end|>"),
}

func mustParse(name, text string, stops ...string) *Template {
	tmpl := template.Must(template.New(name).Funcs(funcs).Parse(text))
	return &Template{
		name: name,
		render: func(w *strings.Builder, msgs []types.ChatMessage) error {
			return tmpl.Execute(w, msgs)
		},
		stops: stops,
	}
}

// newMistral renders the Mistral instruct format:
//
//	<s>[INST] {system}\n\n{user} [/INST] {assistant}</s>[INST] {user} [/INST]
//
// System text is folded into the following user turn; trailing system text
// forms a turn of its own. Every user turn ends with a trailing space after
// [/INST].
func newMistral() *Template {
	return &Template{
		name: "mistral",
		render: func(w *strings.Builder, msgs []types.ChatMessage) error {
			w.WriteString("<s>")
			var system []string
			for _, m := range msgs {
				switch m.Role {
				case "system":
					system = append(system, m.Content)
				case "user":
					w.WriteString("[INST] ")
					for _, s := range system {
						w.WriteString(s)
						w.WriteString("\n\n")
					}
					system = system[:0]
					w.WriteString(m.Content)
					w.WriteString(" [/INST] ")
				case "assistant":
					w.WriteString(m.Content)
					w.WriteString("</s>")
				}
			}
			// system text with no user turn after it becomes its own instruction
			if len(system) > 0 {
				w.WriteString("[INST] ")
				w.WriteString(strings.Join(system, "\n\n"))
				w.WriteString(" [/INST] ")
			}
			return nil
		},
		stops: []string{"</s>", "[INST]"},
	}
}

// Names lists the available templates.
func Names() []string {
	names := make([]string, 0, len(templates))
	for n := range templates {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Lookup returns the named template.
func Lookup(name string) (*Template, error) {
	t, ok := templates[name]
	if !ok {
		return nil, fmt.Errorf("unknown prompt template %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return t, nil
}

func (t *Template) Name() string { return t.name }

// Stops are stop sequences that end an assistant turn in this format.
func (t *Template) Stops() []string { return slices.Clone(t.stops) }

// Render formats msgs. Roles other than system, user and assistant are
// rejected as invalid requests.
func (t *Template) Render(msgs []types.ChatMessage) (string, error) {
	if len(msgs) == 0 {
		return "", generate.ValidationError{Field: "messages", Reason: "at least one message is required"}
	}
	for i, m := range msgs {
		switch m.Role {
		case "system", "user", "assistant":
		default:
			return "", generate.ValidationError{Field: "messages", Reason: fmt.Sprintf("message %d has unknown role %q", i, m.Role)}
		}
	}
	var b strings.Builder
	if err := t.render(&b, msgs); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.name, err)
	}
	return b.String(), nil
}

// Instruction renders a single user turn.
func (t *Template) Instruction(text string) (string, error) {
	return t.Render([]types.ChatMessage{{Role: "user", Content: text}})
}
