package services

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"

	"kyro-backend/internal/models"
)

func TestParseSafetyThreshold(t *testing.T) {
	tests := []struct {
		in      string
		want    genai.HarmBlockThreshold
		wantErr bool
	}{
		{"", genai.HarmBlockUnspecified, false},
		{"none", genai.HarmBlockNone, false},
		{"LOW", genai.HarmBlockLowAndAbove, false},
		{" medium ", genai.HarmBlockMediumAndAbove, false},
		{"high", genai.HarmBlockOnlyHigh, false},
		{"strict", genai.HarmBlockUnspecified, true},
	}

	for _, tc := range tests {
		got, err := parseSafetyThreshold(tc.in)
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err = %v, wantErr %v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("%q: got %v want %v", tc.in, got, tc.want)
		}
	}
}

func TestSafetySettings(t *testing.T) {
	if got := safetySettings(genai.HarmBlockUnspecified); got != nil {
		t.Fatalf("expected API defaults for unspecified threshold, got %d settings", len(got))
	}

	got := safetySettings(genai.HarmBlockMediumAndAbove)
	if len(got) != 4 {
		t.Fatalf("expected 4 categories, got %d", len(got))
	}
	for _, s := range got {
		if s.Threshold != genai.HarmBlockMediumAndAbove {
			t.Fatalf("category %v has threshold %v", s.Category, s.Threshold)
		}
	}
}

func TestExtractText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []genai.Part{genai.Text("Take a "), genai.Text("short break.")}}},
			{Content: nil},
		},
	}

	if got := extractText(resp); got != "Take a short break." {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestHistoryRoleMapping(t *testing.T) {
	contents := toContents([]models.ChatMessage{
		{Role: models.RoleUser, Content: "how do I focus?"},
		{Role: models.RoleAssistant, Content: "try the pomodoro technique"},
	})

	if contents[0].Role != "user" || contents[1].Role != "model" {
		t.Fatalf("unexpected SDK roles: %q, %q", contents[0].Role, contents[1].Role)
	}

	msgs := toChatMessages(append(contents, nil))
	if len(msgs) != 2 {
		t.Fatalf("expected nil entries to be skipped, got %d messages", len(msgs))
	}
	if msgs[1].Role != models.RoleAssistant || msgs[1].Content != "try the pomodoro technique" {
		t.Fatalf("unexpected message %+v", msgs[1])
	}

	if toContents(nil) != nil {
		t.Fatalf("expected nil history for a new conversation")
	}
}

func TestSupportsMethod(t *testing.T) {
	if !supportsMethod([]string{"countTokens", "generateContent"}, "generateContent") {
		t.Fatalf("expected generateContent to be found")
	}
	if supportsMethod([]string{"embedContent"}, "generateContent") {
		t.Fatalf("embedding-only model must be filtered out")
	}
}

func TestOpenConversation_SeedsHistory(t *testing.T) {
	// StartChat never touches the network, so a bare client is enough here.
	svc := &GeminiService{model: (&genai.Client{}).GenerativeModel("gemini-2.0-flash-exp")}

	fresh, _ := svc.OpenConversation(context.Background(), nil)
	if len(fresh.History()) != 0 {
		t.Fatalf("expected empty history for a new conversation")
	}

	seed := []models.ChatMessage{
		{Role: models.RoleUser, Content: "hello"},
		{Role: models.RoleAssistant, Content: "hi there"},
	}
	resumed, _ := svc.OpenConversation(context.Background(), seed)
	if got := resumed.History(); len(got) != 2 || got[1].Content != "hi there" {
		t.Fatalf("expected seeded history, got %+v", got)
	}
}

func TestNewGeminiService_RejectsUnknownThreshold(t *testing.T) {
	if _, err := NewGeminiService(context.Background(), GeminiConfig{APIKey: "k", Model: "m", SafetyThreshold: "max"}); err == nil {
		t.Fatalf("expected error for unknown threshold")
	}
}

func TestTimeOfDayGreetingBoundaries(t *testing.T) {
	tests := map[int]string{
		0:  "Good morning! ☀️",
		11: "Good morning! ☀️",
		12: "Good afternoon! 😊",
		17: "Good afternoon! 😊",
		18: "Good evening! 🌙",
		23: "Good evening! 🌙",
	}
	for hour, want := range tests {
		if got := timeOfDayGreeting(clockAt(hour)()); got != want {
			t.Fatalf("hour %d: got %q want %q", hour, got, want)
		}
	}
}
