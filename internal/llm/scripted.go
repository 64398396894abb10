package llm

import (
	"context"
	"strings"
	"time"
)

// ScriptedClient streams a reply computed locally. It stands in for a real
// provider when no API key is configured.
type ScriptedClient struct {
	reply func(req *CompletionRequest) string
	delay time.Duration
}

// NewScriptedClient creates a scripted client. A nil reply echoes the last
// user message.
func NewScriptedClient(reply func(req *CompletionRequest) string, delay time.Duration) *ScriptedClient {
	if reply == nil {
		reply = echo
	}
	return &ScriptedClient{reply: reply, delay: delay}
}

// Name returns the provider name.
func (c *ScriptedClient) Name() string {
	return string(ProviderScripted)
}

// CompleteStream emits the reply word by word, keeping whitespace attached
// to the preceding word.
func (c *ScriptedClient) CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error) {
	start := time.Now()
	text := c.reply(req)

	tokens := SplitTokens(text)
	for i, tok := range tokens {
		if c.delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.delay):
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := callback(tok, i); err != nil {
			return nil, err
		}
	}

	return &CompletionResponse{
		Content:    text,
		Model:      "scripted",
		TokensOut:  len(tokens),
		StopReason: "end_turn",
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// SplitTokens cuts text after every run of whitespace. Joining the result
// gives back text.
func SplitTokens(text string) []string {
	var tokens []string
	start := 0
	inSpace := false
	for i, r := range text {
		space := r == ' ' || r == '\n' || r == '\t'
		if inSpace && !space {
			tokens = append(tokens, text[start:i])
			start = i
		}
		inSpace = space
	}
	if start < len(text) {
		tokens = append(tokens, text[start:])
	}
	return tokens
}

func echo(req *CompletionRequest) string {
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == "user" {
			return strings.TrimSpace(req.Messages[i].Content)
		}
	}
	return ""
}
