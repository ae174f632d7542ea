package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

// DefaultOpenAIBaseURL points at Groq's OpenAI-compatible API.
const DefaultOpenAIBaseURL = "https://api.groq.com/openai/v1/"

// openAIProvider talks to any chat completions API through openai-go.
type openAIProvider struct {
	model  domain.ModelDefinition
	client openai.Client
}

func newOpenAIProvider(model domain.ModelDefinition, httpClient *http.Client) (ports.Provider, error) {
	apiKey := getAPIKey(model)
	if apiKey == "" {
		return nil, missingKeyError(model)
	}
	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(OpenAIBaseURL(model.Endpoint)),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(1),
	)
	return &openAIProvider{model: model, client: client}, nil
}

// OpenAIBaseURL derives the client base URL from a configured endpoint, which
// may be either a base URL or a full chat completions URL.
func OpenAIBaseURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return DefaultOpenAIBaseURL
	}
	endpoint = strings.TrimSuffix(endpoint, "/")
	endpoint = strings.TrimSuffix(endpoint, "/chat/completions")
	return endpoint + "/"
}

func (p *openAIProvider) Name() string {
	return string(domain.ProviderOpenAI)
}

func (p *openAIProvider) Model() domain.ModelDefinition {
	return p.model
}

func (p *openAIProvider) Generate(ctx context.Context, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	params := openai.ChatCompletionNewParams{
		Messages: toOpenAIMessages(req.Messages),
		Model:    openai.ChatModel(p.model.ModelID),
	}
	if p.model.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(p.model.MaxTokens))
	}
	if p.model.Temperature > 0 {
		params.Temperature = openai.Float(p.model.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return ports.ProviderResponse{}, errors.New("no choices in response")
	}
	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		return ports.ProviderResponse{}, errors.New("empty message content")
	}
	return ports.ProviderResponse{Reply: content}, nil
}

func toOpenAIMessages(messages []domain.PromptMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			out = append(out, openai.SystemMessage(msg.Content))
		case "assistant":
			out = append(out, openai.AssistantMessage(msg.Content))
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out
}
