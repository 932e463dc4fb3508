package llm

import (
	"context"
	"time"
)

// Chat message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

// Options carries generation parameters. Out-of-range values are clamped by
// Clamp rather than rejected, so a cosmetic misconfiguration never fails a
// user-facing request.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Clamp bounds parameters to their valid ranges: temperature and top_p to
// [0, 1], max tokens to a positive integer. TopP 0 means "backend default"
// and is passed through.
func (o Options) Clamp() Options {
	if o.Temperature < 0 {
		o.Temperature = 0
	}
	if o.Temperature > 1 {
		o.Temperature = 1
	}
	if o.TopP < 0 {
		o.TopP = 0
	}
	if o.TopP > 1 {
		o.TopP = 1
	}
	if o.MaxTokens < 1 {
		o.MaxTokens = 1
	}
	return o
}

type Request struct {
	Model    string
	Messages []Message
	Options  Options
}

// Client is the capability interface every backend implements. A single
// variant is selected at startup; callers never switch providers at call
// time.
type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
