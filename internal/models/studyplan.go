package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Minutes decodes a duration that the model may return as either a JSON
// number or a quoted string ("30", "30 minutes"). Anything unparsable
// falls back to 30.
type Minutes int

const defaultMinutes = 30

func (m *Minutes) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		*m = Minutes(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		digits := strings.TrimFunc(s, func(r rune) bool { return r < '0' || r > '9' })
		if n, err := strconv.Atoi(digits); err == nil {
			*m = Minutes(n)
			return nil
		}
	}

	*m = defaultMinutes
	return nil
}

type QuizQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
	Answer   string   `json:"answer"`
}

type Subtopic struct {
	Name     string         `json:"name"`
	Duration Minutes        `json:"duration_minutes"`
	Quiz     []QuizQuestion `json:"quiz"`
}

type Topic struct {
	Topic     string     `json:"topic"`
	Duration  Minutes    `json:"duration_minutes"`
	Subtopics []Subtopic `json:"subtopics"`
}

// StudyPlan is the primary generated artifact. After validation every
// topic carries a subtopics slice and every subtopic a non-empty quiz.
type StudyPlan struct {
	Topics []Topic `json:"study_plan"`
}

// PlanRecord is the persisted form of a plan, alongside the source
// filename and the mindmap entries it was generated from.
type PlanRecord struct {
	ID            uuid.UUID       `json:"id"`
	UserID        int64           `json:"user_id"`
	Filename      string          `json:"filename"`
	MindmapData   json.RawMessage `json:"mindmap_data"`
	StudyPlanData json.RawMessage `json:"study_plan_data"`
	CreatedAt     time.Time       `json:"created_at"`
}

type StudyPlanResponse struct {
	Topics      []Topic   `json:"study_plan"`
	Tokens      int       `json:"tokens"`
	StudyPlanID uuid.UUID `json:"study_plan_id"`
}

type InitializePlanRequest struct {
	Mindmaps []MindmapEntry `json:"mindmaps"`
}

type SubmitQuizRequest struct {
	Answers map[string]string `json:"answers"`
}

// QuestionResult is the per-question grading detail, in original
// question order.
type QuestionResult struct {
	QuestionIndex int    `json:"question_index"`
	Submitted     string `json:"submitted"`
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
}

type QuizResult struct {
	Score        int              `json:"score"`
	Total        int              `json:"total"`
	Percentage   float64          `json:"percentage"`
	Passed       bool             `json:"passed"`
	TokensEarned int              `json:"tokens_earned"`
	TopicName    string           `json:"topic_name"`
	SubtopicName string           `json:"subtopic_name"`
	Results      []QuestionResult `json:"results"`
}

// ProgressEntry tracks one completed quiz inside a session.
type ProgressEntry struct {
	Completed  bool    `json:"completed"`
	Score      int     `json:"score"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
	Tokens     int     `json:"tokens"`
	Passed     bool    `json:"passed"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
