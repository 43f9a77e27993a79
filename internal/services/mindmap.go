package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"omex-backend/internal/ai"
	"omex-backend/internal/models"
)

// MindmapService turns cleaned document text into titled mermaid mindmap
// outlines via one generation call.
type MindmapService struct {
	client *ai.Client
}

func NewMindmapService(client *ai.Client) *MindmapService {
	return &MindmapService{client: client}
}

const mindmapSystemPrompt = `Generate separate Markdown mindmaps for each major topic and its subtopics.
Format exactly like this:

### Topic 1
` + "```mindmap" + `
root((Topic 1))
  "Subtopic A"
    "Detail 1"
    "Detail 2"
  "Subtopic B"
` + "```" + `

### Topic 2
` + "```mindmap" + `
root((Topic 2))
  "Subtopic C"
  "Subtopic D"
` + "```" + `

- Use ONLY 2-space indentation
- NEVER use dashes/bullets
- Include ALL content from the text`

// Generate asks the model for sectioned mindmap markdown and returns the
// structured entries. The endpoint is probed first; a dead endpoint fails
// before the main call is attempted.
func (s *MindmapService) Generate(ctx context.Context, text string) ([]models.MindmapEntry, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &InputError{Message: "input text is empty"}
	}

	if err := s.client.Probe(ctx); err != nil {
		return nil, &ConnectivityError{Message: "generation endpoint unreachable", Err: err}
	}

	raw, err := s.client.Complete(ctx, []ai.Message{
		{Role: "system", Content: mindmapSystemPrompt},
		{Role: "user", Content: "Create structured mindmaps for:\n" + text},
	}, 0.3)
	if err != nil {
		return nil, &ConnectivityError{Message: "mindmap generation failed", Err: err}
	}

	entries := ProcessMindmaps(raw)
	if len(entries) == 0 {
		return nil, &InputError{Message: "no mindmap sections found in generated output"}
	}

	return entries, nil
}

var (
	sectionHeader = regexp.MustCompile(`### (.*?)\n`)
	mindmapFence  = regexp.MustCompile("(?s)```mindmap\n(.*?)```")
	labelBrackets = regexp.MustCompile(`[()\[\]{}]`)
)

// ProcessMindmaps splits AI markdown into "### Title" sections and
// normalizes every fenced mindmap block inside them.
func ProcessMindmaps(raw string) []models.MindmapEntry {
	var entries []models.MindmapEntry

	headers := sectionHeader.FindAllStringSubmatchIndex(raw, -1)
	for i, h := range headers {
		title := strings.TrimSpace(raw[h[2]:h[3]])

		end := len(raw)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		body := raw[h[1]:end]

		for _, block := range mindmapFence.FindAllStringSubmatch(body, -1) {
			entries = append(entries, models.MindmapEntry{
				Title:   title,
				Outline: normalizeOutline(strings.TrimSpace(block[1])),
			})
		}
	}

	return entries
}

// normalizeOutline prepares mermaid mindmap code: wraps the root node,
// strips brackets from labels, normalizes indentation to 2-space steps,
// and prefixes the mindmap directive.
func normalizeOutline(code string) string {
	lines := strings.Split(strings.TrimSpace(code), "\n")

	cleaned := make([]string, 0, len(lines))
	for i, line := range lines {
		indentLevel := len(line) - len(strings.TrimLeft(line, " "))
		indent := strings.Repeat("  ", indentLevel/2)

		content := strings.TrimSpace(line)
		content = labelBrackets.ReplaceAllString(content, "")

		if i == 0 {
			if strings.HasPrefix(content, "root") {
				topic := strings.TrimSpace(content[4:])
				content = fmt.Sprintf("root((%s))", topic)
			} else {
				content = "root((Mindmap))"
			}
		}

		cleaned = append(cleaned, indent+content)
	}

	return "mindmap\n" + strings.Join(cleaned, "\n")
}
