package ai

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/doeshing/vrelay/internal/domain"
)

// renderSystemMessages expands the model's prompt templates with the context
// snapshot. Only system messages are kept; user turns come from the caller.
// If the model has no custom prompt template, the default system prompt is used.
//
// Template Variables Available:
//   - {{.WorkingDir}}: Current working directory
//   - {{.Shell}}: Active shell (bash, zsh, etc.)
//   - {{.OS}}, {{.Arch}}, {{.Platform}}: Host platform
//   - {{.User}}: Current user
//   - {{.Files}}: Comma-separated list of files in the working directory
//   - {{.AvailableTools}}: Comma-separated list of available CLI tools
func renderSystemMessages(model domain.ModelDefinition, snapshot domain.ContextSnapshot) ([]domain.PromptMessage, error) {
	data := buildTemplateData(snapshot)
	messages := model.Prompt
	if len(messages) == 0 {
		messages = defaultTemplateMessages()
	}

	rendered := make([]domain.PromptMessage, 0, len(messages))
	for _, msg := range messages {
		if !strings.EqualFold(msg.Role, "system") {
			continue
		}
		content, err := executeTemplate(msg.Content, data)
		if err != nil {
			return nil, fmt.Errorf("render prompt: %w", err)
		}
		rendered = append(rendered, domain.PromptMessage{
			Role:    "system",
			Content: strings.TrimSpace(content),
		})
	}
	return rendered, nil
}

type templateData struct {
	WorkingDir     string
	Shell          string
	OS             string
	Arch           string
	Platform       string
	User           string
	Files          string
	AvailableTools string
}

func buildTemplateData(snapshot domain.ContextSnapshot) templateData {
	return templateData{
		WorkingDir:     snapshot.WorkingDir,
		Shell:          snapshot.Shell,
		OS:             snapshot.OS,
		Arch:           snapshot.Arch,
		Platform:       snapshot.Platform,
		User:           snapshot.User,
		Files:          filesSummary(snapshot.Files),
		AvailableTools: strings.Join(snapshot.AvailableTools, ", "),
	}
}

func filesSummary(files []domain.FileInfo) string {
	if len(files) == 0 {
		return ""
	}
	names := make([]string, 0, len(files))
	for _, file := range files {
		names = append(names, file.Path)
	}
	return strings.Join(names, ", ")
}

func executeTemplate(raw string, data templateData) (string, error) {
	tmpl, err := template.New("prompt").Parse(raw)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DefaultSystemPrompt is the template used when a model declares no prompt.
const DefaultSystemPrompt = `You are vrelay, a voice-driven command relay.
When the user asks for a task (for example "list files" or "show disk usage"), reply only with code that performs it.
Wrap every piece of code in a fenced block so it can be executed:
- ` + "```sh" + ` for shell commands.
- ` + "```go" + ` for interpreted snippets: plain Go statements, no package clause needed. Print results with fmt.Println.
  For file access use files.Read(path), files.Write(path, content), files.List(dir) and files.Walk(root); each returns a string.
Never explain, never ask for permission, never add prose outside the code blocks unless no code can do the task.
Platform context: OS: {{.OS}}, Arch: {{.Arch}}, Shell: {{.Shell}}{{if .Platform}}, Platform: {{.Platform}}{{end}}.
Working directory: {{.WorkingDir}}
{{if .AvailableTools}}Available tools: {{.AvailableTools}}
{{end}}{{if .Files}}Files: {{.Files}}
{{end}}`

func defaultTemplateMessages() []domain.PromptMessage {
	return []domain.PromptMessage{
		{Role: "system", Content: DefaultSystemPrompt},
	}
}
