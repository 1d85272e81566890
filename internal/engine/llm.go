package engine

import (
	"context"
	"errors"
	"strings"
)

// ErrLLMDisabled is returned when no completion gateway is configured.
var ErrLLMDisabled = errors.New("llm: completion gateway not configured")

// stripFences removes markdown code fences from LLM output.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```text")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// CallLLM sends a prompt to the configured gateway and returns the fence-stripped reply.
func CallLLM(ctx context.Context, prompt string) (string, error) {
	if cfg.LLMComplete == nil {
		return "", ErrLLMDisabled
	}
	metrics.LLMCalls.Add(1)
	resp, err := cfg.LLMComplete(ctx, prompt)
	if err != nil {
		metrics.LLMErrors.Add(1)
		return "", err
	}
	return stripFences(resp), nil
}
