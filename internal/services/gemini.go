package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"kyro-backend/internal/models"
	"kyro-backend/internal/session"
)

type GeminiConfig struct {
	APIKey          string
	Model           string
	Temperature     float32
	TopP            float32
	MaxOutputTokens int32
	SafetyThreshold string // "", "none", "low", "medium", "high"
	ConcurrentReqs  int
}

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(ctx context.Context, cfg GeminiConfig) (*GeminiService, error) {
	threshold, err := parseSafetyThreshold(cfg.SafetyThreshold)
	if err != nil {
		return nil, err
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(cfg.Temperature)
	model.SetTopP(cfg.TopP)
	model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	model.SafetySettings = safetySettings(threshold)

	concurrentReqs := cfg.ConcurrentReqs
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiService) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// OpenConversation starts a chat on the configured model. It is a session.Opener.
func (s *GeminiService) OpenConversation(_ context.Context, history []models.ChatMessage) (session.Conversation, error) {
	cs := s.model.StartChat()
	cs.History = toContents(history)
	return &geminiConversation{svc: s, chat: cs}, nil
}

// ListModels returns the models that can serve generateContent.
func (s *GeminiService) ListModels(ctx context.Context) ([]models.ModelInfo, error) {
	it := s.client.ListModels(ctx)

	list := []models.ModelInfo{}
	for {
		m, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list Gemini models: %w", err)
		}
		if !supportsMethod(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		list = append(list, models.ModelInfo{Name: m.Name, Description: m.Description})
	}

	return list, nil
}

type geminiConversation struct {
	svc  *GeminiService
	chat *genai.ChatSession
}

func (c *geminiConversation) Send(ctx context.Context, text string) (string, error) {
	if err := c.svc.acquireRate(ctx); err != nil {
		return "", err
	}
	defer c.svc.releaseRate()

	// The SDK appends the user turn before calling out; undo it on failure.
	mark := len(c.chat.History)

	resp, err := c.chat.SendMessage(ctx, genai.Text(text))
	if err != nil {
		c.chat.History = c.chat.History[:mark]
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("[gemini] candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	reply := strings.TrimSpace(extractText(resp))
	if reply == "" {
		c.chat.History = c.chat.History[:mark]
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("Gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("Gemini returned an empty response")
	}

	return reply, nil
}

func (c *geminiConversation) History() []models.ChatMessage {
	return toChatMessages(c.chat.History)
}

// Helper functions

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}

func contentText(c *genai.Content) string {
	var text strings.Builder
	for _, part := range c.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String()
}

func toChatMessages(history []*genai.Content) []models.ChatMessage {
	msgs := make([]models.ChatMessage, 0, len(history))
	for _, c := range history {
		if c == nil {
			continue
		}
		role := models.RoleUser
		if c.Role == "model" {
			role = models.RoleAssistant
		}
		msgs = append(msgs, models.ChatMessage{Role: role, Content: contentText(c)})
	}
	return msgs
}

func toContents(msgs []models.ChatMessage) []*genai.Content {
	if len(msgs) == 0 {
		return nil
	}
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return contents
}

func parseSafetyThreshold(name string) (genai.HarmBlockThreshold, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "":
		return genai.HarmBlockUnspecified, nil
	case "none":
		return genai.HarmBlockNone, nil
	case "low":
		return genai.HarmBlockLowAndAbove, nil
	case "medium":
		return genai.HarmBlockMediumAndAbove, nil
	case "high":
		return genai.HarmBlockOnlyHigh, nil
	default:
		return genai.HarmBlockUnspecified, fmt.Errorf("unknown safety threshold %q (want none, low, medium or high)", name)
	}
}

// safetySettings returns nil for an unspecified threshold so the API defaults apply.
func safetySettings(threshold genai.HarmBlockThreshold) []*genai.SafetySetting {
	if threshold == genai.HarmBlockUnspecified {
		return nil
	}

	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}

	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{Category: c, Threshold: threshold})
	}
	return settings
}

func supportsMethod(methods []string, want string) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
