package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"omex-backend/internal/ai"
	"omex-backend/internal/models"
)

func TestFlattenOutline(t *testing.T) {
	tests := []struct {
		name    string
		outline string
		want    []string
	}{
		{
			name:    "plain labels",
			outline: "mindmap\n  root((Biology))\n    Cells\n    Genetics\n",
			want:    []string{"Cells", "Genetics"},
		},
		{
			name:    "quoted and dashed labels",
			outline: "mindmap\n  root((X))\n    \"Photosynthesis\"\n    -Respiration-\n",
			want:    []string{"Photosynthesis", "Respiration"},
		},
		{
			name:    "blank and root-only lines",
			outline: "mindmap\n\n  root((Empty))\n   \n",
			want:    nil,
		},
		{
			name:    "empty string",
			outline: "",
			want:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FlattenOutline(tt.outline)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenOutline() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuildTopicContexts(t *testing.T) {
	entries := []models.MindmapEntry{
		{Title: "Biology", Outline: "mindmap\n  root((Biology))\n    Cells\n"},
		{Title: "History", Outline: "mindmap\n  root((History))\n"},
		{Title: "", Outline: ""},
	}

	contexts := buildTopicContexts(entries)
	if len(contexts) != 2 {
		t.Fatalf("expected 2 contexts, got %d", len(contexts))
	}
	if contexts[0].Topic != "Biology" || len(contexts[0].Subtopics) != 1 {
		t.Errorf("unexpected first context: %+v", contexts[0])
	}
	if contexts[1].Topic != "History" || contexts[1].Subtopics[0] != generalOverviewName {
		t.Errorf("titled entry without labels should get %q, got %+v", generalOverviewName, contexts[1])
	}
}

func TestParseStudyPlanJSON(t *testing.T) {
	t.Run("strict parse", func(t *testing.T) {
		parsed, ok := parseStudyPlanJSON(`{"study_plan": []}`)
		if !ok || parsed == nil {
			t.Fatal("expected successful parse")
		}
	})

	t.Run("fenced response", func(t *testing.T) {
		parsed, ok := parseStudyPlanJSON("```json\n{\"study_plan\": []}\n```")
		if !ok {
			t.Fatal("expected successful parse of fenced JSON")
		}
		if _, exists := parsed["study_plan"]; !exists {
			t.Error("study_plan key lost in parse")
		}
	})

	t.Run("noise around braces", func(t *testing.T) {
		parsed, ok := parseStudyPlanJSON(`Sure! Here you go: {"study_plan": []} Hope that helps.`)
		if !ok {
			t.Fatal("expected brace-span recovery to succeed")
		}
		if _, exists := parsed["study_plan"]; !exists {
			t.Error("study_plan key missing after recovery")
		}
	})

	t.Run("no structure", func(t *testing.T) {
		if _, ok := parseStudyPlanJSON("no braces here"); ok {
			t.Error("expected parse failure for text without JSON")
		}
	})

	t.Run("unbalanced braces", func(t *testing.T) {
		if _, ok := parseStudyPlanJSON(`{"study_plan": [`); ok {
			t.Error("expected parse failure for truncated JSON")
		}
	})
}

func TestValidateStudyPlan(t *testing.T) {
	entries := []models.MindmapEntry{
		{Title: "Biology", Outline: "mindmap\n  root((Biology))\n    Cells\n"},
		{Title: "Chemistry", Outline: ""},
	}

	t.Run("unparsable response synthesizes full plan", func(t *testing.T) {
		plan := validateStudyPlan(nil, false, entries)
		if len(plan.Topics) != len(entries) {
			t.Fatalf("expected one topic per entry, got %d", len(plan.Topics))
		}
		for _, topic := range plan.Topics {
			if len(topic.Subtopics) != 1 {
				t.Fatalf("topic %q: expected single subtopic, got %d", topic.Topic, len(topic.Subtopics))
			}
			if topic.Subtopics[0].Name != generalOverviewName {
				t.Errorf("topic %q: expected %q subtopic, got %q", topic.Topic, generalOverviewName, topic.Subtopics[0].Name)
			}
			if len(topic.Subtopics[0].Quiz) == 0 {
				t.Errorf("topic %q: synthesized subtopic has no quiz", topic.Topic)
			}
		}
	})

	t.Run("missing study_plan key synthesizes full plan", func(t *testing.T) {
		plan := validateStudyPlan(map[string]any{"plan": []any{}}, true, entries)
		if len(plan.Topics) != len(entries) {
			t.Fatalf("expected fallback plan with %d topics, got %d", len(entries), len(plan.Topics))
		}
	})

	t.Run("empty quiz repaired in place", func(t *testing.T) {
		parsed := map[string]any{
			"study_plan": []any{
				map[string]any{
					"topic":            "Biology",
					"duration_minutes": float64(60),
					"subtopics": []any{
						map[string]any{
							"name":             "Cells",
							"duration_minutes": float64(20),
							"quiz":             []any{},
						},
					},
				},
			},
		}
		plan := validateStudyPlan(parsed, true, entries)
		if len(plan.Topics) != 1 {
			t.Fatalf("expected 1 topic, got %d", len(plan.Topics))
		}
		quiz := plan.Topics[0].Subtopics[0].Quiz
		if len(quiz) != 2 {
			t.Fatalf("expected 2 fallback questions, got %d", len(quiz))
		}
		if quiz[0].Answer != "A" || quiz[1].Answer != "B" {
			t.Errorf("fallback answer keys = %q, %q; want A, B", quiz[0].Answer, quiz[1].Answer)
		}
		if quiz[0].Question != "What is a key concept related to Cells within the topic of Biology?" {
			t.Errorf("unexpected first fallback question: %q", quiz[0].Question)
		}
	})

	t.Run("string durations coerced", func(t *testing.T) {
		parsed := map[string]any{
			"study_plan": []any{
				map[string]any{
					"topic":            "Biology",
					"duration_minutes": "45 minutes",
					"subtopics": []any{
						map[string]any{
							"name":             "Cells",
							"duration_minutes": "oops",
							"quiz": []any{
								map[string]any{
									"question": "Q?",
									"options":  []any{"A. yes", "B. no"},
									"answer":   "A",
								},
							},
						},
					},
				},
			},
		}
		plan := validateStudyPlan(parsed, true, entries)
		if plan.Topics[0].Duration != 45 {
			t.Errorf("topic duration = %d, want 45", plan.Topics[0].Duration)
		}
		if plan.Topics[0].Subtopics[0].Duration != fallbackDuration {
			t.Errorf("subtopic duration = %d, want fallback %d", plan.Topics[0].Subtopics[0].Duration, fallbackDuration)
		}
	})

	t.Run("malformed questions dropped", func(t *testing.T) {
		parsed := map[string]any{
			"study_plan": []any{
				map[string]any{
					"topic": "Biology",
					"subtopics": []any{
						map[string]any{
							"name": "Cells",
							"quiz": []any{
								map[string]any{"question": "", "options": []any{"A"}, "answer": "A"},
								map[string]any{"question": "Real?", "options": []any{"A. yes"}, "answer": "A"},
								"not a question",
							},
						},
					},
				},
			},
		}
		plan := validateStudyPlan(parsed, true, entries)
		quiz := plan.Topics[0].Subtopics[0].Quiz
		if len(quiz) != 1 || quiz[0].Question != "Real?" {
			t.Errorf("expected only the valid question to survive, got %+v", quiz)
		}
	})
}

func TestGeneratePlanInputErrors(t *testing.T) {
	p := NewPlanner(nil)

	var inputErr *InputError
	if _, err := p.GeneratePlan(context.Background(), nil, "text"); !errors.As(err, &inputErr) {
		t.Errorf("empty entries: expected InputError, got %v", err)
	}

	entries := []models.MindmapEntry{{Title: "", Outline: ""}}
	if _, err := p.GeneratePlan(context.Background(), entries, "text"); !errors.As(err, &inputErr) {
		t.Errorf("no extractable contexts: expected InputError, got %v", err)
	}
}

func TestGeneratePlanEndToEnd(t *testing.T) {
	planJSON := `{"study_plan": [{"topic": "Biology", "duration_minutes": 60, "subtopics": [{"name": "Cells", "duration_minutes": 20, "quiz": [{"question": "What is a cell?", "options": ["A. Unit of life", "B. A phone"], "answer": "A"}]}]}]}`

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.Write([]byte(`{"data": []}`))
		case "/chat/completions":
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{
					map[string]any{"message": map[string]any{"content": planJSON}},
				},
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, err := ai.NewClient(ai.Config{Backend: ai.BackendOpenAI, APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	p := NewPlanner(client)
	entries := []models.MindmapEntry{
		{Title: "Biology", Outline: "mindmap\n  root((Biology))\n    Cells\n"},
	}

	plan, err := p.GeneratePlan(context.Background(), entries, "source text")
	if err != nil {
		t.Fatalf("GeneratePlan: %v", err)
	}
	if len(plan.Topics) != 1 || plan.Topics[0].Topic != "Biology" {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if got := plan.Topics[0].Subtopics[0].Quiz[0].Answer; got != "A" {
		t.Errorf("quiz answer = %q, want A", got)
	}
}

func TestGeneratePlanConnectivityError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	server.Close()

	client, err := ai.NewClient(ai.Config{Backend: ai.BackendOpenAI, APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	p := NewPlanner(client)
	entries := []models.MindmapEntry{
		{Title: "Biology", Outline: "mindmap\n  root((Biology))\n    Cells\n"},
	}

	var connErr *ConnectivityError
	if _, err := p.GeneratePlan(context.Background(), entries, "text"); !errors.As(err, &connErr) {
		t.Errorf("expected ConnectivityError against closed server, got %v", err)
	}
}

func TestGeneratePlanGarbageResponseFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models":
			w.Write([]byte(`{"data": []}`))
		case "/chat/completions":
			json.NewEncoder(w).Encode(map[string]any{
				"choices": []any{
					map[string]any{"message": map[string]any{"content": "I cannot produce JSON today."}},
				},
			})
		}
	}))
	defer server.Close()

	client, err := ai.NewClient(ai.Config{Backend: ai.BackendOpenAI, APIKey: "test-key", BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	p := NewPlanner(client)
	entries := []models.MindmapEntry{
		{Title: "Biology", Outline: "mindmap\n  root((Biology))\n    Cells\n"},
	}

	plan, err := p.GeneratePlan(context.Background(), entries, "text")
	if err != nil {
		t.Fatalf("format failure must not surface as error, got %v", err)
	}
	if len(plan.Topics) != 1 || plan.Topics[0].Topic != "Biology" {
		t.Fatalf("expected synthesized fallback plan, got %+v", plan)
	}
	if len(plan.Topics[0].Subtopics[0].Quiz) != 2 {
		t.Errorf("fallback quiz should have 2 questions, got %d", len(plan.Topics[0].Subtopics[0].Quiz))
	}
}
