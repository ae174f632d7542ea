// Package domain defines the core entities and value objects of vrelay.
//
// This file holds the oracle model definitions declared in the config file.
// The domain layer has no infrastructure dependencies.
package domain

import "strings"

// ProviderKind selects the oracle adapter for a model.
type ProviderKind string

const (
	ProviderOpenAI ProviderKind = "openai"
	ProviderGemini ProviderKind = "gemini"
	ProviderHTTP   ProviderKind = "http"
)

// ModelDefinition describes one language model endpoint usable as the oracle.
type ModelDefinition struct {
	Name        string          `yaml:"name"`
	Provider    ProviderKind    `yaml:"provider"`
	Endpoint    string          `yaml:"endpoint"`
	AuthEnvVar  string          `yaml:"auth_env_var"`
	ModelID     string          `yaml:"model_id"`
	MaxTokens   int             `yaml:"max_tokens"`
	Temperature float64         `yaml:"temperature"`
	Prompt      []PromptMessage `yaml:"prompt,omitempty"`
	APIFormat   APIFormat       `yaml:"api_format,omitempty"`
}

// ResolvedProvider infers the adapter when the provider field is empty.
func (m ModelDefinition) ResolvedProvider() ProviderKind {
	if m.Provider != "" {
		return ProviderKind(strings.ToLower(string(m.Provider)))
	}
	switch {
	case strings.Contains(m.Endpoint, "generativelanguage.googleapis.com"):
		return ProviderGemini
	case strings.Contains(m.Endpoint, "/chat/completions"), m.Endpoint == "":
		return ProviderOpenAI
	default:
		return ProviderHTTP
	}
}

// APIFormat tunes the generic HTTP provider for non OpenAI-compatible APIs.
// Every field is optional.
type APIFormat struct {
	// AuthHeaderName defaults to "Authorization".
	AuthHeaderName string `yaml:"auth_header_name,omitempty"`
	// AuthHeaderPrefix defaults to "Bearer " unless AuthHeaderName is customised.
	AuthHeaderPrefix string `yaml:"auth_header_prefix,omitempty"`
	// SystemMessageMode is "inline" (default) or "separate" (top-level "system" field).
	SystemMessageMode string `yaml:"system_message_mode,omitempty"`
	// ContentWrapper "anthropic" wraps message content as [{"type":"text","text":...}].
	ContentWrapper string `yaml:"content_wrapper,omitempty"`
	// ResponseJSONPath locates the reply text, e.g. "content[0].text".
	ResponseJSONPath string `yaml:"response_json_path,omitempty"`
	// ExtraHeaders are sent with every request.
	ExtraHeaders map[string]string `yaml:"extra_headers,omitempty"`
}

// PromptMessage follows the role/content pair required by most chat APIs.
type PromptMessage struct {
	Role    string `yaml:"role" json:"role"`
	Content string `yaml:"content" json:"content"`
}

const (
	DefaultAuthHeaderName     = "Authorization"
	DefaultAuthHeaderPrefix   = "Bearer "
	SystemMessageModeInline   = "inline"
	SystemMessageModeSeparate = "separate"
	DefaultResponsePath       = "choices[0].message.content"
	ContentWrapperStandard    = "standard"
	ContentWrapperAnthropic   = "anthropic"
)

// GetAuthHeaderName returns the authentication header name with default fallback.
func (f APIFormat) GetAuthHeaderName() string {
	if f.AuthHeaderName == "" {
		return DefaultAuthHeaderName
	}
	return f.AuthHeaderName
}

// GetAuthHeaderPrefix returns the header value prefix. A custom header name
// with no prefix means the key is sent bare.
func (f APIFormat) GetAuthHeaderPrefix() string {
	if f.AuthHeaderPrefix != "" {
		return f.AuthHeaderPrefix
	}
	if f.AuthHeaderName != "" {
		return ""
	}
	return DefaultAuthHeaderPrefix
}

// IsSystemMessageSeparate reports whether system prompts go in a top-level field.
func (f APIFormat) IsSystemMessageSeparate() bool {
	return strings.EqualFold(f.SystemMessageMode, SystemMessageModeSeparate)
}

// IsContentWrapped reports whether message content is sent as a typed array.
func (f APIFormat) IsContentWrapped() bool {
	return strings.EqualFold(f.ContentWrapper, ContentWrapperAnthropic)
}

// GetResponseJSONPath returns the reply path with default fallback.
func (f APIFormat) GetResponseJSONPath() string {
	if f.ResponseJSONPath == "" {
		return DefaultResponsePath
	}
	return f.ResponseJSONPath
}
