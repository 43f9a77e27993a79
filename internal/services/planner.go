package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"omex-backend/internal/ai"
	"omex-backend/internal/models"
)

const (
	fallbackTopicName    = "Fallback Topic"
	generalOverviewName  = "General Overview"
	fallbackDuration     = 30
	questionsPerSubtopic = 5
)

// Planner generates a validated study plan from mindmap entries plus the
// cleaned source text, in a single generation call. Whatever the model
// returns, the output always satisfies: every topic has a subtopics slice
// and every subtopic a non-empty quiz. Grading depends on that invariant.
type Planner struct {
	client *ai.Client
}

func NewPlanner(client *ai.Client) *Planner {
	return &Planner{client: client}
}

// FlattenOutline converts an indented outline into its subtopic labels.
// Root-declaration and directive lines are dropped; quote and dash
// decoration is stripped. Duplicates and order are preserved.
func FlattenOutline(outline string) []string {
	var labels []string
	for _, line := range strings.Split(outline, "\n") {
		clean := strings.TrimSpace(line)
		if clean == "" || strings.HasPrefix(clean, "root") || strings.HasPrefix(clean, "mindmap") {
			continue
		}
		label := strings.TrimSpace(strings.Trim(clean, `"'-`))
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// buildTopicContexts derives the prompt context from mindmap entries. An
// entry with no parsed labels but a real title gets a synthetic "General
// Overview" subtopic; an untitled entry with no labels is dropped.
func buildTopicContexts(entries []models.MindmapEntry) []models.TopicContext {
	var contexts []models.TopicContext
	for _, entry := range entries {
		subtopics := FlattenOutline(entry.Outline)
		switch {
		case len(subtopics) > 0:
			title := entry.Title
			if title == "" {
				title = "Untitled Topic"
			}
			contexts = append(contexts, models.TopicContext{Topic: title, Subtopics: subtopics})
		case entry.Title != "":
			contexts = append(contexts, models.TopicContext{Topic: entry.Title, Subtopics: []string{generalOverviewName}})
		}
	}
	return contexts
}

// GeneratePlan runs the full pipeline: context assembly, connectivity
// probe, one completion call, parse/repair, structural validation.
// Transport failures surface as ConnectivityError; malformed model output
// never does; it is replaced by synthesized fallback content.
func (p *Planner) GeneratePlan(ctx context.Context, entries []models.MindmapEntry, sourceText string) (models.StudyPlan, error) {
	if len(entries) == 0 {
		return models.StudyPlan{}, &InputError{Message: "no mindmap data provided"}
	}

	contexts := buildTopicContexts(entries)
	if len(contexts) == 0 {
		return models.StudyPlan{}, &InputError{Message: "could not extract any topics or subtopics from mindmap data"}
	}

	if err := p.client.Probe(ctx); err != nil {
		return models.StudyPlan{}, &ConnectivityError{Message: "generation endpoint unreachable", Err: err}
	}

	raw, err := p.client.Complete(ctx, []ai.Message{
		{Role: "system", Content: "You are a helpful AI that creates study plans."},
		{Role: "user", Content: buildPlanPrompt(contexts, sourceText)},
	}, 0.3)
	if err != nil {
		return models.StudyPlan{}, &ConnectivityError{Message: "study plan generation failed", Err: err}
	}

	parsed, ok := parseStudyPlanJSON(raw)
	return validateStudyPlan(parsed, ok, entries), nil
}

func buildPlanPrompt(contexts []models.TopicContext, sourceText string) string {
	contextJSON, _ := json.MarshalIndent(contexts, "", "  ")

	var b strings.Builder
	b.WriteString(`Generate a study plan for this material. Include:
- Main topic and subtopics
- Estimated study time in minutes per topic and subtopic
- Exactly `)
	fmt.Fprintf(&b, "%d", questionsPerSubtopic)
	b.WriteString(` multiple-choice questions per subtopic, each with 4 options and the correct option letter, drawn from the mindmap content below.

Format as JSON with structure:
{
  "study_plan": [
    {
      "topic": "[Title]",
      "duration_minutes": 30,
      "subtopics": [
        {
          "name": "[Subtopic Name]",
          "duration_minutes": 30,
          "quiz": [
            {
              "question": "[Question Text]",
              "options": ["A. ...", "B. ...", "C. ...", "D. ..."],
              "answer": "[Correct Option Letter]"
            }
          ]
        }
      ]
    }
  ]
}

Cover every topic listed. Use this mindmap content and source text to create the plan:
`)
	b.Write(contextJSON)
	b.WriteString("\n\n")
	b.WriteString(sourceText)

	return b.String()
}

// parseStudyPlanJSON extracts a JSON object from possibly noisy model
// output. It tries a strict parse of the whole text first, then the span
// from the first '{' to the last '}'. A miss is an expected outcome, not
// an error: the caller falls back to synthesis.
func parseStudyPlanJSON(raw string) (map[string]any, bool) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var parsed map[string]any
	if err := json.Unmarshal([]byte(text), &parsed); err == nil {
		return parsed, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// validateStudyPlan walks the parsed value and guarantees the plan
// invariant. A value with no usable study_plan list is discarded entirely
// in favor of a full synthesized plan; a structurally valid plan gets
// per-field repair only.
func validateStudyPlan(parsed map[string]any, ok bool, entries []models.MindmapEntry) models.StudyPlan {
	if !ok {
		log.Println("study plan response had no parsable structure, synthesizing fallback plan")
		return fallbackPlan(entries)
	}

	rawList, exists := parsed["study_plan"]
	list, isList := rawList.([]any)
	if !exists || !isList {
		log.Println("study plan response missing study_plan list, synthesizing fallback plan")
		return fallbackPlan(entries)
	}

	plan := models.StudyPlan{Topics: make([]models.Topic, 0, len(list))}
	for _, item := range list {
		m, _ := item.(map[string]any)

		topic := models.Topic{
			Topic:     stringField(m, "topic", "Unnamed Topic"),
			Duration:  minutesField(m, "duration_minutes"),
			Subtopics: []models.Subtopic{},
		}

		subList, _ := m["subtopics"].([]any)
		for _, subItem := range subList {
			sm, _ := subItem.(map[string]any)

			sub := models.Subtopic{
				Name:     stringField(sm, "name", "Unnamed Subtopic"),
				Duration: minutesField(sm, "duration_minutes"),
				Quiz:     convertQuiz(sm["quiz"]),
			}
			if len(sub.Quiz) == 0 {
				log.Printf("missing or invalid quiz for %s -> %s, adding fallback", topic.Topic, sub.Name)
				sub.Quiz = fallbackQuiz(topic.Topic, sub.Name)
			}
			topic.Subtopics = append(topic.Subtopics, sub)
		}

		plan.Topics = append(plan.Topics, topic)
	}

	return plan
}

func convertQuiz(raw any) []models.QuizQuestion {
	list, ok := raw.([]any)
	if !ok {
		return nil
	}

	var quiz []models.QuizQuestion
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		q := models.QuizQuestion{
			Question: stringField(m, "question", ""),
			Answer:   stringField(m, "answer", ""),
		}
		if opts, ok := m["options"].([]any); ok {
			for _, o := range opts {
				if s, ok := o.(string); ok {
					q.Options = append(q.Options, s)
				}
			}
		}
		if q.Question == "" || len(q.Options) == 0 {
			continue
		}
		quiz = append(quiz, q)
	}
	return quiz
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func minutesField(m map[string]any, key string) models.Minutes {
	switch v := m[key].(type) {
	case float64:
		return models.Minutes(v)
	case string:
		var minutes models.Minutes
		data, _ := json.Marshal(v)
		minutes.UnmarshalJSON(data)
		return minutes
	default:
		return fallbackDuration
	}
}

// fallbackPlan replaces an unusable response wholesale: one topic per
// mindmap entry, each with a single General Overview subtopic and a
// synthesized quiz.
func fallbackPlan(entries []models.MindmapEntry) models.StudyPlan {
	plan := models.StudyPlan{Topics: make([]models.Topic, 0, len(entries))}
	for _, entry := range entries {
		title := entry.Title
		if title == "" {
			title = fallbackTopicName
		}
		plan.Topics = append(plan.Topics, models.Topic{
			Topic:    title,
			Duration: fallbackDuration,
			Subtopics: []models.Subtopic{{
				Name:     generalOverviewName,
				Duration: fallbackDuration,
				Quiz:     fallbackQuiz(title, generalOverviewName),
			}},
		})
	}
	return plan
}

// fallbackQuiz synthesizes a deterministic 2-question placeholder quiz for
// a (topic, subtopic) pair. No external call.
func fallbackQuiz(topic, subtopic string) []models.QuizQuestion {
	return []models.QuizQuestion{
		{
			Question: fmt.Sprintf("What is a key concept related to %s within the topic of %s?", subtopic, topic),
			Options:  []string{"A. Option A", "B. Option B", "C. Option C", "D. Option D"},
			Answer:   "A",
		},
		{
			Question: fmt.Sprintf("How does %s relate to the broader topic of %s?", subtopic, topic),
			Options:  []string{"A. Relation A", "B. Relation B", "C. Relation C", "D. Relation D"},
			Answer:   "B",
		},
	}
}
