package models

// MindmapEntry is one titled, indented outline produced from the AI's
// markdown output. Outline is newline-delimited, 2-space-indented mermaid
// mindmap markup beginning with a root line.
type MindmapEntry struct {
	Title   string `json:"title"`
	Outline string `json:"content"`
}

// TopicContext is the flattened view of a MindmapEntry used to build the
// study-plan prompt. Derived per generation call, never stored.
type TopicContext struct {
	Topic     string   `json:"topic"`
	Subtopics []string `json:"subtopics"`
}
