package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

// geminiProvider calls the Gemini API through the genai SDK.
type geminiProvider struct {
	model  domain.ModelDefinition
	client *genai.Client
}

func newGeminiProvider(model domain.ModelDefinition, httpClient *http.Client) (ports.Provider, error) {
	apiKey := getAPIKey(model)
	if apiKey == "" {
		return nil, missingKeyError(model)
	}
	cfg := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	if base := geminiBaseURL(model.Endpoint); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &geminiProvider{model: model, client: client}, nil
}

// geminiBaseURL keeps only scheme and host of a custom endpoint; the SDK
// appends the versioned model path itself.
func geminiBaseURL(endpoint string) string {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return ""
	}
	if idx := strings.Index(endpoint, "://"); idx >= 0 {
		if slash := strings.Index(endpoint[idx+3:], "/"); slash >= 0 {
			endpoint = endpoint[:idx+3+slash]
		}
	}
	return endpoint + "/"
}

func (p *geminiProvider) Name() string {
	return string(domain.ProviderGemini)
}

func (p *geminiProvider) Model() domain.ModelDefinition {
	return p.model
}

func (p *geminiProvider) Generate(ctx context.Context, req ports.ProviderRequest) (ports.ProviderResponse, error) {
	system, contents := toGeminiContents(req.Messages)
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if p.model.MaxTokens > 0 {
		config.MaxOutputTokens = int32(p.model.MaxTokens)
	}
	if p.model.Temperature > 0 {
		config.Temperature = genai.Ptr(float32(p.model.Temperature))
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model.ModelID, contents, config)
	if err != nil {
		return ports.ProviderResponse{}, fmt.Errorf("GenAI generate failed: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return ports.ProviderResponse{}, errors.New("empty message content")
	}
	return ports.ProviderResponse{Reply: text}, nil
}

// toGeminiContents joins system messages into one instruction and maps the
// assistant role to Gemini's "model" role.
func toGeminiContents(messages []domain.PromptMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		switch strings.ToLower(msg.Role) {
		case "system":
			system = append(system, msg.Content)
		case "assistant", "model":
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}
	return strings.TrimSpace(strings.Join(system, "\n")), contents
}
