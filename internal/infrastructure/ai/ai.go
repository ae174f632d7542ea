// Package ai provides the repair oracle: provider factory, provider adapters and
// the conversation that keeps chat history across turns.
//
// Three adapters are available, selected by ModelDefinition.ResolvedProvider:
//   - openai: any OpenAI-compatible chat completions API via openai-go (Groq by default)
//   - gemini: Google Gemini via google.golang.org/genai
//   - http:   a generic JSON-over-HTTP client driven by the model's APIFormat
//
// All adapters share one HTTP client, optionally routed through a SOCKS5 proxy.
package ai

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

const httpClientTimeout = 120 * time.Second

// Factory creates AI provider instances based on model definitions.
// It maintains a single HTTP client shared across all providers.
type Factory struct {
	httpClient *http.Client
}

// NewFactory creates a provider factory. A non-empty proxy address routes every
// request through that SOCKS5 proxy.
func NewFactory(proxyAddr string) (*Factory, error) {
	client := &http.Client{Timeout: httpClientTimeout}
	if proxyAddr != "" {
		socks, err := NewSocksClient(proxyAddr)
		if err != nil {
			return nil, fmt.Errorf("dial socks proxy %s: %w", proxyAddr, err)
		}
		client = socks
	}
	return &Factory{httpClient: client}, nil
}

// NewFactoryWithClient uses client for every provider.
func NewFactoryWithClient(client *http.Client) *Factory {
	return &Factory{httpClient: client}
}

// HTTPClient exposes the shared client.
func (f *Factory) HTTPClient() *http.Client {
	return f.httpClient
}

// ForModel creates the adapter matching the model's provider.
func (f *Factory) ForModel(model domain.ModelDefinition) (ports.Provider, error) {
	switch kind := model.ResolvedProvider(); kind {
	case domain.ProviderOpenAI:
		return newOpenAIProvider(model, f.httpClient)
	case domain.ProviderGemini:
		return newGeminiProvider(model, f.httpClient)
	case domain.ProviderHTTP:
		return newHTTPProvider(model, f.httpClient), nil
	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", kind)
	}
}

// getAPIKey retrieves the API key from environment variables.
func getAPIKey(model domain.ModelDefinition) string {
	if model.AuthEnvVar == "" {
		return ""
	}
	return os.Getenv(model.AuthEnvVar)
}

func missingKeyError(model domain.ModelDefinition) error {
	return fmt.Errorf("missing API key: set %s environment variable", model.AuthEnvVar)
}

var _ ports.ProviderFactory = (*Factory)(nil)
