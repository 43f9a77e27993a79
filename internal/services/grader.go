package services

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"omex-backend/internal/models"
)

const (
	passThreshold      = 70.0
	tokensPerfectScore = 20
	tokensPassingScore = 10
)

// TokenCrediter credits reward tokens and returns the new balance.
type TokenCrediter interface {
	Add(ctx context.Context, userID int64, amount int) (int, error)
}

// ProgressRecorder stores per-session quiz completion entries.
type ProgressRecorder interface {
	Record(ctx context.Context, sessionID, key string, entry models.ProgressEntry) error
}

// Grader scores quiz submissions against a stored plan, credits reward
// tokens, and records per-session progress.
type Grader struct {
	tokenRepo TokenCrediter
	progress  ProgressRecorder
}

func NewGrader(tokenRepo TokenCrediter, progress ProgressRecorder) *Grader {
	return &Grader{tokenRepo: tokenRepo, progress: progress}
}

// Grade scores the submission at (topicIndex, subtopicIndex). Answer keys
// are stringified question indexes; comparison is case-insensitive and
// whitespace-trimmed. Unanswered questions count as incorrect.
func (g *Grader) Grade(
	ctx context.Context,
	plan models.StudyPlan,
	topicIndex, subtopicIndex int,
	answers map[string]string,
	userID int64,
	sessionID string,
) (*models.QuizResult, error) {
	if topicIndex < 0 || topicIndex >= len(plan.Topics) {
		return nil, &InputError{Message: "topic index out of bounds"}
	}
	topic := plan.Topics[topicIndex]

	if subtopicIndex < 0 || subtopicIndex >= len(topic.Subtopics) {
		return nil, &InputError{Message: "subtopic index out of bounds"}
	}
	subtopic := topic.Subtopics[subtopicIndex]

	// Validation guarantees a non-empty quiz, but a plan stored by an
	// older build might not honor that.
	if len(subtopic.Quiz) == 0 {
		return nil, &NotFoundError{Message: "no quiz questions found for this subtopic"}
	}

	score := 0
	total := len(subtopic.Quiz)
	results := make([]models.QuestionResult, 0, total)

	for i, q := range subtopic.Quiz {
		submitted := answers[strconv.Itoa(i)]
		correct := submitted != "" && q.Answer != "" &&
			strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(q.Answer))
		if correct {
			score++
		}
		results = append(results, models.QuestionResult{
			QuestionIndex: i,
			Submitted:     submitted,
			CorrectAnswer: q.Answer,
			IsCorrect:     correct,
		})
	}

	percentage := 0.0
	if total > 0 {
		percentage = math.Round(float64(score)/float64(total)*1000) / 10
	}
	passed := percentage >= passThreshold

	tokensEarned := 0
	if passed {
		if score == total {
			tokensEarned = tokensPerfectScore
		} else {
			tokensEarned = tokensPassingScore
		}
	}

	if tokensEarned > 0 {
		if _, err := g.tokenRepo.Add(ctx, userID, tokensEarned); err != nil {
			return nil, &PersistenceError{Message: "failed to credit tokens", Err: err}
		}
		log.Printf("user %d earned %d tokens for quiz %d_%d", userID, tokensEarned, topicIndex, subtopicIndex)
	}

	// Progress is session-bookkeeping; a redis hiccup must not void a
	// completed grade.
	key := fmt.Sprintf("%d_%d", topicIndex, subtopicIndex)
	err := g.progress.Record(ctx, sessionID, key, models.ProgressEntry{
		Completed:  true,
		Score:      score,
		Total:      total,
		Percentage: percentage,
		Tokens:     tokensEarned,
		Passed:     passed,
	})
	if err != nil {
		log.Printf("failed to record quiz progress for session %s: %v", sessionID, err)
	}

	return &models.QuizResult{
		Score:        score,
		Total:        total,
		Percentage:   percentage,
		Passed:       passed,
		TokensEarned: tokensEarned,
		TopicName:    topic.Topic,
		SubtopicName: subtopic.Name,
		Results:      results,
	}, nil
}
