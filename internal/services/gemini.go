package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"support-chat/internal/models"
)

type GeminiProvider struct {
	client    *genai.Client
	modelName string
}

func NewGeminiProvider(ctx context.Context, apiKey, modelName string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client:    client,
		modelName: modelName,
	}, nil
}

func (p *GeminiProvider) Name() string { return "gemini" }

func (p *GeminiProvider) Close() error {
	return p.client.Close()
}

func (p *GeminiProvider) Stream(ctx context.Context, messages []models.ChatMessage) (Stream, error) {
	system, history, last, err := toGeminiContents(messages)
	if err != nil {
		return nil, &UpstreamError{Provider: p.Name(), Err: err}
	}

	// GenerativeModel holds per-call settings; one per request.
	model := p.client.GenerativeModel(p.modelName)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	cs := model.StartChat()
	cs.History = history
	return &geminiStream{iter: cs.SendMessageStream(ctx, last.Parts...)}, nil
}

// toGeminiContents maps chat messages onto Gemini's shape: system messages
// become the system instruction, assistant turns use the "model" role,
// consecutive turns of the same role are merged and leading model turns are
// dropped. The final turn must come from the user.
func toGeminiContents(messages []models.ChatMessage) (string, []*genai.Content, *genai.Content, error) {
	var system []string
	var contents []*genai.Content

	for _, m := range messages {
		var role string
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)
			continue
		case models.RoleAssistant:
			role = "model"
		default:
			role = "user"
		}

		if len(contents) == 0 && role == "model" {
			continue
		}
		if n := len(contents); n > 0 && contents[n-1].Role == role {
			contents[n-1].Parts = append(contents[n-1].Parts, genai.Text(m.Content))
			continue
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}

	if len(contents) == 0 || contents[len(contents)-1].Role != "user" {
		return "", nil, nil, errors.New("conversation must end with a user message")
	}

	last := contents[len(contents)-1]
	return strings.Join(system, "\n\n"), contents[:len(contents)-1], last, nil
}

type geminiStream struct {
	iter *genai.GenerateContentResponseIterator
}

func (s *geminiStream) Recv() (string, error) {
	resp, err := s.iter.Next()
	if errors.Is(err, iterator.Done) {
		return "", io.EOF
	}
	if err != nil {
		return "", &UpstreamError{Provider: "gemini", Err: err}
	}
	return extractText(resp), nil
}

func (s *geminiStream) Close() error { return nil }

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
