package ai

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/vrelay/internal/domain"
	"github.com/doeshing/vrelay/internal/ports"
)

// DefaultMaxTurns bounds the number of user/assistant pairs sent with each call.
const DefaultMaxTurns = 10

// ConversationOptions configures a Conversation.
type ConversationOptions struct {
	Snapshot domain.ContextSnapshot
	Timeout  time.Duration
	MaxTurns int
	Logger   ports.Logger
}

// Conversation implements ports.Oracle on top of a stateless provider. It
// keeps the rendered system prompt plus the successful turns so far; calls are
// serialized.
type Conversation struct {
	provider ports.Provider
	system   []domain.PromptMessage
	timeout  time.Duration
	maxTurns int
	logger   ports.Logger

	mu      sync.Mutex
	history []domain.PromptMessage
}

// NewConversation renders the system prompt for the provider's model.
func NewConversation(provider ports.Provider, opts ConversationOptions) (*Conversation, error) {
	if provider == nil {
		return nil, errors.New("conversation requires a provider")
	}
	system, err := renderSystemMessages(provider.Model(), opts.Snapshot)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = domain.DefaultOracleTimeout
	}
	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Conversation{
		provider: provider,
		system:   system,
		timeout:  timeout,
		maxTurns: maxTurns,
		logger:   opts.Logger,
	}, nil
}

// Name identifies the model behind the conversation.
func (c *Conversation) Name() string {
	model := c.provider.Model()
	if model.Name != "" {
		return model.Name
	}
	return c.provider.Name()
}

// Chat sends prompt with the conversation so far. Failures are returned as
// *domain.OracleError and leave the history untouched.
func (c *Conversation) Chat(ctx context.Context, prompt string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	messages := make([]domain.PromptMessage, 0, len(c.system)+len(c.history)+1)
	messages = append(messages, c.system...)
	messages = append(messages, c.history...)
	messages = append(messages, domain.PromptMessage{Role: "user", Content: prompt})

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.provider.Generate(callCtx, ports.ProviderRequest{Messages: messages})
	if err != nil {
		if c.logger != nil {
			c.logger.Error("oracle call failed", err, map[string]interface{}{
				"provider": c.provider.Name(),
				"model":    c.provider.Model().ModelID,
			})
		}
		return "", &domain.OracleError{Provider: c.Name(), Err: err}
	}
	reply := strings.TrimSpace(resp.Reply)

	c.history = append(c.history,
		domain.PromptMessage{Role: "user", Content: prompt},
		domain.PromptMessage{Role: "assistant", Content: reply},
	)
	if excess := len(c.history) - 2*c.maxTurns; excess > 0 {
		c.history = append([]domain.PromptMessage(nil), c.history[excess:]...)
	}

	if c.logger != nil {
		c.logger.Debug("oracle replied", map[string]interface{}{
			"provider":    c.provider.Name(),
			"duration_ms": time.Since(start).Milliseconds(),
			"reply_chars": len(reply),
		})
	}
	return reply, nil
}

// UpdateContext re-renders the system prompt from a fresh snapshot. Recorded
// turns are kept.
func (c *Conversation) UpdateContext(snapshot domain.ContextSnapshot) error {
	system, err := renderSystemMessages(c.provider.Model(), snapshot)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.system = system
	c.mu.Unlock()
	return nil
}

// Messages returns a copy of the system prompt plus the recorded turns.
func (c *Conversation) Messages() []domain.PromptMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]domain.PromptMessage(nil), c.system...)
	return append(out, c.history...)
}

// Reset forgets all recorded turns.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

var _ ports.Oracle = (*Conversation)(nil)
