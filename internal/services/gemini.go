package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiService struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiService(apiKey, modelName string, concurrentReqs int) (*GeminiService, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)

	// Token bucket for limiting concurrent upstream calls
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
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiService) releaseRate() {
	s.rateChan <- struct{}{}
}

// Generate sends an assembled message sequence to the model and returns the
// generated text. A single attempt is made per call; the caller may resubmit.
func (s *GeminiService) Generate(ctx context.Context, contents []*genai.Content) (string, error) {
	if len(contents) == 0 {
		return "", &ValidationError{Message: "Invalid conversation format"}
	}

	if err := s.acquireRate(ctx); err != nil {
		return "", &UpstreamError{Err: err}
	}
	defer s.releaseRate()

	// The SDK models a multi-turn exchange as a chat session: everything but
	// the trailing turn is history, the trailing turn is the message.
	cs := s.model.StartChat()
	cs.History = contents[:len(contents)-1]

	last := contents[len(contents)-1]
	resp, err := cs.SendMessage(ctx, last.Parts...)
	if err != nil {
		return "", &UpstreamError{Err: err}
	}

	text := extractText(resp)
	if text == "" {
		return "", &UpstreamError{Err: fmt.Errorf("Gemini returned an empty response")}
	}

	return text, nil
}

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
