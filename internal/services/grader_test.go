package services

import (
	"context"
	"errors"
	"testing"

	"omex-backend/internal/models"
)

type fakeTokenCrediter struct {
	balance int
	calls   int
	err     error
}

func (f *fakeTokenCrediter) Add(ctx context.Context, userID int64, amount int) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.calls++
	f.balance += amount
	return f.balance, nil
}

type fakeProgressRecorder struct {
	entries map[string]models.ProgressEntry
	err     error
}

func (f *fakeProgressRecorder) Record(ctx context.Context, sessionID, key string, entry models.ProgressEntry) error {
	if f.err != nil {
		return f.err
	}
	if f.entries == nil {
		f.entries = make(map[string]models.ProgressEntry)
	}
	f.entries[key] = entry
	return nil
}

func testPlan() models.StudyPlan {
	return models.StudyPlan{Topics: []models.Topic{
		{
			Topic: "Biology",
			Subtopics: []models.Subtopic{
				{
					Name: "Cells",
					Quiz: []models.QuizQuestion{
						{Question: "Q1", Options: []string{"A", "B"}, Answer: "A"},
						{Question: "Q2", Options: []string{"A", "B"}, Answer: "B"},
						{Question: "Q3", Options: []string{"A", "B", "C"}, Answer: "C"},
						{Question: "Q4", Options: []string{"A", "B", "C", "D"}, Answer: "D"},
						{Question: "Q5", Options: []string{"A", "B"}, Answer: "A"},
					},
				},
				{Name: "Empty", Quiz: nil},
			},
		},
	}}
}

func TestGradePartialPass(t *testing.T) {
	tokens := &fakeTokenCrediter{}
	progress := &fakeProgressRecorder{}
	g := NewGrader(tokens, progress)

	// Four of five correct: case-insensitive on "a", wrong on "X".
	answers := map[string]string{
		"0": "a",
		"1": "B",
		"2": "X",
		"3": "d",
		"4": "A",
	}

	result, err := g.Grade(context.Background(), testPlan(), 0, 0, answers, 1, "sess-1")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}

	if result.Score != 4 || result.Total != 5 {
		t.Errorf("score = %d/%d, want 4/5", result.Score, result.Total)
	}
	if result.Percentage != 80.0 {
		t.Errorf("percentage = %v, want 80.0", result.Percentage)
	}
	if !result.Passed {
		t.Error("expected pass at 80%")
	}
	if result.TokensEarned != 10 {
		t.Errorf("tokens earned = %d, want 10", result.TokensEarned)
	}
	if tokens.balance != 10 {
		t.Errorf("credited balance = %d, want 10", tokens.balance)
	}
	if result.TopicName != "Biology" || result.SubtopicName != "Cells" {
		t.Errorf("names = %q/%q", result.TopicName, result.SubtopicName)
	}
	if len(result.Results) != 5 {
		t.Fatalf("expected 5 per-question results, got %d", len(result.Results))
	}
	if result.Results[2].IsCorrect {
		t.Error("question 2 graded correct with wrong answer")
	}

	entry, ok := progress.entries["0_0"]
	if !ok {
		t.Fatal("progress entry not recorded under 0_0")
	}
	if !entry.Completed || entry.Score != 4 || entry.Tokens != 10 {
		t.Errorf("unexpected progress entry: %+v", entry)
	}
}

func TestGradePerfectScore(t *testing.T) {
	tokens := &fakeTokenCrediter{}
	g := NewGrader(tokens, &fakeProgressRecorder{})

	answers := map[string]string{"0": "A", "1": "B", "2": "C", "3": "D", "4": "A"}
	result, err := g.Grade(context.Background(), testPlan(), 0, 0, answers, 1, "sess-1")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.TokensEarned != 20 {
		t.Errorf("perfect score tokens = %d, want 20", result.TokensEarned)
	}
	if result.Percentage != 100.0 {
		t.Errorf("percentage = %v, want 100.0", result.Percentage)
	}
}

func TestGradeFailNoTokens(t *testing.T) {
	tokens := &fakeTokenCrediter{}
	g := NewGrader(tokens, &fakeProgressRecorder{})

	// Three of five is 60%, below the threshold.
	answers := map[string]string{"0": "A", "1": "B", "2": "C"}
	result, err := g.Grade(context.Background(), testPlan(), 0, 0, answers, 1, "sess-1")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Passed {
		t.Error("60% should not pass")
	}
	if result.TokensEarned != 0 {
		t.Errorf("failing tokens = %d, want 0", result.TokensEarned)
	}
	if tokens.calls != 0 {
		t.Error("no credit call expected on a failing grade")
	}
}

func TestGradeWhitespaceTrimmed(t *testing.T) {
	g := NewGrader(&fakeTokenCrediter{}, &fakeProgressRecorder{})

	answers := map[string]string{"0": "  A  ", "1": " b ", "2": "C", "3": "D", "4": "A"}
	result, err := g.Grade(context.Background(), testPlan(), 0, 0, answers, 1, "sess-1")
	if err != nil {
		t.Fatalf("Grade: %v", err)
	}
	if result.Score != 5 {
		t.Errorf("score = %d, want 5 with trimmed answers", result.Score)
	}
}

func TestGradeBounds(t *testing.T) {
	g := NewGrader(&fakeTokenCrediter{}, &fakeProgressRecorder{})
	plan := testPlan()

	var inputErr *InputError
	cases := []struct {
		name     string
		topicIdx int
		subIdx   int
	}{
		{"negative topic", -1, 0},
		{"topic at length", 1, 0},
		{"negative subtopic", 0, -1},
		{"subtopic at length", 0, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := g.Grade(context.Background(), plan, tc.topicIdx, tc.subIdx, map[string]string{}, 1, "sess-1")
			if !errors.As(err, &inputErr) {
				t.Errorf("expected InputError, got %v", err)
			}
		})
	}
}

func TestGradeEmptyQuiz(t *testing.T) {
	g := NewGrader(&fakeTokenCrediter{}, &fakeProgressRecorder{})

	var notFound *NotFoundError
	_, err := g.Grade(context.Background(), testPlan(), 0, 1, map[string]string{}, 1, "sess-1")
	if !errors.As(err, &notFound) {
		t.Errorf("expected NotFoundError for empty quiz, got %v", err)
	}
}

func TestGradeTokenCreditFailure(t *testing.T) {
	tokens := &fakeTokenCrediter{err: errors.New("connection refused")}
	g := NewGrader(tokens, &fakeProgressRecorder{})

	answers := map[string]string{"0": "A", "1": "B", "2": "C", "3": "D", "4": "A"}
	var persistErr *PersistenceError
	_, err := g.Grade(context.Background(), testPlan(), 0, 0, answers, 1, "sess-1")
	if !errors.As(err, &persistErr) {
		t.Errorf("expected PersistenceError on credit failure, got %v", err)
	}
}

func TestGradeProgressFailureDoesNotVoidGrade(t *testing.T) {
	progress := &fakeProgressRecorder{err: errors.New("redis down")}
	g := NewGrader(&fakeTokenCrediter{}, progress)

	answers := map[string]string{"0": "A", "1": "B", "2": "C", "3": "D", "4": "A"}
	result, err := g.Grade(context.Background(), testPlan(), 0, 0, answers, 1, "sess-1")
	if err != nil {
		t.Fatalf("progress failure should not fail grading, got %v", err)
	}
	if result.TokensEarned != 20 {
		t.Errorf("tokens earned = %d, want 20", result.TokensEarned)
	}
}

func TestGradeRepeatSubmissionCreditsAgain(t *testing.T) {
	tokens := &fakeTokenCrediter{}
	g := NewGrader(tokens, &fakeProgressRecorder{})

	answers := map[string]string{"0": "A", "1": "B", "2": "C", "3": "D", "4": "A"}
	for i := 0; i < 2; i++ {
		if _, err := g.Grade(context.Background(), testPlan(), 0, 0, answers, 1, "sess-1"); err != nil {
			t.Fatalf("Grade attempt %d: %v", i+1, err)
		}
	}
	if tokens.balance != 40 {
		t.Errorf("balance after two perfect runs = %d, want 40", tokens.balance)
	}
}
