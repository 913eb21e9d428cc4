package prioritize

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/cloudsbay/tasker/internal/types"
)

// Placeholder is replaced by the bulleted task list.
const Placeholder = "{tasks}"

// DefaultPrompt asks for the single most urgent task by name.
const DefaultPrompt = `You are a helpful AI assistant that helps prioritize tasks.
Please select the most urgent task from the following list based on priority and deadline:

{tasks}

Return only the task name of the most urgent task.`

// Template renders the prioritization prompt.
type Template struct {
	text string
}

// NewTemplate validates text and returns a Template.
func NewTemplate(text string) (*Template, error) {
	if !strings.Contains(text, Placeholder) {
		return nil, fmt.Errorf("prompt template must contain the %s placeholder", Placeholder)
	}
	return &Template{text: text}, nil
}

// DefaultTemplate returns the built-in prompt.
func DefaultTemplate() *Template {
	return &Template{text: DefaultPrompt}
}

// Text returns the raw template.
func (t *Template) Text() string { return t.text }

// Render substitutes one line per task for the placeholder.
func (t *Template) Render(tasks []*types.Task) string {
	return strings.ReplaceAll(t.text, Placeholder, TaskLines(tasks))
}

// TaskLines formats tasks as "- Task: <name>, Priority: <p>, Deadline: <d>"
// lines joined by newlines.
func TaskLines(tasks []*types.Task) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		lines = append(lines, fmt.Sprintf("- Task: %s, Priority: %s, Deadline: %s", t.Name, t.Priority, t.Deadline))
	}
	return strings.Join(lines, "\n")
}

// promptFile is the TOML layout accepted by LoadTemplateFile:
//
//	[prompt]
//	template = """
//	...{tasks}...
//	"""
type promptFile struct {
	Prompt struct {
		Template string `toml:"template"`
	} `toml:"prompt"`
}

// LoadTemplateFile reads a prompt template from a TOML file.
func LoadTemplateFile(path string) (*Template, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from ai.prompt-file
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt file: %w", err)
	}
	var pf promptFile
	if _, err := toml.Decode(string(data), &pf); err != nil {
		return nil, fmt.Errorf("failed to parse prompt file %s: %w", path, err)
	}
	if strings.TrimSpace(pf.Prompt.Template) == "" {
		return nil, fmt.Errorf("prompt file %s has no [prompt] template", path)
	}
	return NewTemplate(pf.Prompt.Template)
}
