package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

// ErrEmptyReply is returned when the model answers without any text, for
// example when every candidate was blocked by a safety filter.
var ErrEmptyReply = errors.New("model returned no text")

type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type GeminiService struct {
	client        *genai.Client
	model         contentGenerator
	assistantName string
	rateChan      chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName string, temperature float32, concurrentReqs int, assistantName string) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)

	s := newGeminiService(model, concurrentReqs, assistantName)
	s.client = client
	return s, nil
}

func newGeminiService(model contentGenerator, concurrentReqs int, assistantName string) *GeminiService {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	// Token bucket bounding in-flight upstream calls
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiService{
		model:         model,
		assistantName: assistantName,
		rateChan:      rateChan,
	}
}

func (s *GeminiService) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// acquireRate blocks until a slot is available or ctx ends
func (s *GeminiService) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Relay embeds message in the health-advice prompt, calls the model once and
// returns its text verbatim. Every failure is returned as is; nothing is
// retried.
func (s *GeminiService) Relay(ctx context.Context, message string) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", err
	}
	defer s.releaseRate()

	prompt := buildHealthPrompt(s.assistantName, message)

	resp, err := s.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("Gemini API error: %w", err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil {
			return "", fmt.Errorf("prompt blocked (%s): %w", resp.PromptFeedback.BlockReason, ErrEmptyReply)
		}
		return "", ErrEmptyReply
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Warn().Int("candidate", i).Str("finish_reason", cand.FinishReason.String()).Msg("Gemini stopped early")
		}
	}

	text := extractText(resp)
	if text == "" {
		return "", ErrEmptyReply
	}

	log.Debug().Int("chars", len(text)).Msg("Gemini reply received")

	return text, nil
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

func buildHealthPrompt(assistantName, question string) string {
	var b strings.Builder

	// Layer 1: Role
	b.WriteString(fmt.Sprintf("You are %s, an AI doctor assistant trained by human doctors. ", assistantName))
	b.WriteString("Help the user with their health question and give medical advice, but state clearly that it does not replace a diagnosis by a professional doctor.\n\n")

	// Layer 2: Structure
	b.WriteString("Respond in English with this structure:\n")
	b.WriteString("• Open with a short, empathetic acknowledgment of the concern\n")
	b.WriteString("• Use medical terms where they help and explain the complex ones\n")
	b.WriteString("• Organize the answer in bullet points (•)\n")
	b.WriteString("• Ask follow-up questions about symptoms, duration, severity and other relevant details\n")
	b.WriteString("• When appropriate, say when the user should seek in-person care\n")
	b.WriteString("• Close with a disclaimer that the advice is informational only\n\n")

	// Layer 3: Question
	b.WriteString("User question: ")
	b.WriteString(question)

	return b.String()
}
