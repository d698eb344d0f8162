// Package utils provides utility functions for the Loom framework.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts tokens with the tiktoken encoding matching a
// model. Encodings are expensive to build, so they are cached per model
// across counters.
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
	model    string
	mu       sync.RWMutex
}

// Message is one turn for message-level counting.
type Message struct {
	Role    string
	Content string
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	cacheMu       sync.RWMutex
)

// NewTokenCounter builds a counter for the model, falling back to the
// cl100k_base encoding when tiktoken doesn't know the model.
func NewTokenCounter(model string) (*TokenCounter, error) {
	cacheMu.RLock()
	cached, exists := encodingCache[model]
	cacheMu.RUnlock()
	if exists {
		return &TokenCounter{encoding: cached, model: model}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding: %w", err)
		}
	}

	cacheMu.Lock()
	encodingCache[model] = encoding
	cacheMu.Unlock()

	return &TokenCounter{encoding: encoding, model: model}, nil
}

// Count returns the token count for text.
func (tc *TokenCounter) Count(text string) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return len(tc.encoding.Encode(text, nil, nil))
}

// replyPrimingTokens accounts for the <|start|>assistant<|message|>
// priming every reply carries.
const replyPrimingTokens = 3

// CountMessages counts tokens across a message list including the
// per-message role framing, following OpenAI's published chat counting
// scheme.
func (tc *TokenCounter) CountMessages(messages []Message) int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()

	const tokensPerMessage = 3 // <|start|>role|message<|end|>

	total := 0
	for _, msg := range messages {
		total += tokensPerMessage
		total += len(tc.encoding.Encode(msg.Role, nil, nil))
		total += len(tc.encoding.Encode(msg.Content, nil, nil))
	}
	return total + replyPrimingTokens
}

// FitWithinLimit returns the suffix of messages that fits the token
// budget, preferring the most recent.
func (tc *TokenCounter) FitWithinLimit(messages []Message, maxTokens int) []Message {
	if len(messages) == 0 {
		return messages
	}

	fitted := []Message{}
	currentTokens := replyPrimingTokens

	for i := len(messages) - 1; i >= 0; i-- {
		msgTokens := tc.CountMessages([]Message{messages[i]})
		if currentTokens+msgTokens > maxTokens {
			break
		}
		fitted = append([]Message{messages[i]}, fitted...)
		currentTokens += msgTokens
	}
	return fitted
}

// EstimateTokensForText counts when an encoding is loaded and falls
// back to the rough heuristic on a nil counter.
func (tc *TokenCounter) EstimateTokensForText(text string) int {
	if tc == nil || tc.encoding == nil {
		return EstimateTokens(text)
	}
	return tc.Count(text)
}

// GetModel returns the model name this counter is configured for.
func (tc *TokenCounter) GetModel() string {
	return tc.model
}

// EstimateTokens roughly estimates tokens at four characters each, for
// paths where building a TokenCounter isn't worth it.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// modelEncodings maps model name prefixes to tiktoken encodings.
// Non-OpenAI models approximate with cl100k_base.
var modelEncodings = map[string]string{
	"gpt-4":                "cl100k_base",
	"gpt-4-turbo":          "cl100k_base",
	"gpt-4o":               "o200k_base",
	"gpt-4o-mini":          "o200k_base",
	"gpt-3.5-turbo":        "cl100k_base",
	"text-embedding-ada":   "cl100k_base",
	"claude":               "cl100k_base",
	"claude-3":             "cl100k_base",
	"claude-3-opus":        "cl100k_base",
	"claude-3-5-sonnet":    "cl100k_base",
	"gemini":               "cl100k_base",
	"gemini-pro":           "cl100k_base",
	"gemini-1.5-pro":       "cl100k_base",
	"gemini-2.0-flash-exp": "cl100k_base",
}

// GetEncodingForModel resolves a model name to its encoding, by exact
// match first and longest matching prefix second, defaulting to
// cl100k_base.
func GetEncodingForModel(model string) string {
	if encoding, exists := modelEncodings[model]; exists {
		return encoding
	}

	best, bestLen := "", -1
	for prefix, encoding := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > bestLen {
			best, bestLen = encoding, len(prefix)
		}
	}
	if bestLen >= 0 {
		return best
	}
	return "cl100k_base"
}
