package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dimanchick22/alicebot/llm"
)

const apiVersion = "2023-06-01"

type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type messagesRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	System      string        `json:"system,omitempty"`
	Messages    []llm.Message `json:"messages"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Chat performs a single messages call. The API does not accept a system
// role inside messages, so system entries are lifted into the top-level
// system field. Failures map to llm.KindUnavailable; one attempt, no retry.
func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()
	opts := req.Options.Clamp()

	var system []string
	msgs := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == llm.RoleSystem {
			system = append(system, m.Content)
			continue
		}
		msgs = append(msgs, m)
	}

	body := messagesRequest{
		Model:       req.Model,
		MaxTokens:   opts.MaxTokens,
		System:      strings.Join(system, "\n\n"),
		Messages:    msgs,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return llm.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/messages", bytes.NewReader(b))
	if err != nil {
		return llm.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return llm.Result{}, llm.Unavailable("anthropic messages request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Result{}, llm.Unavailable("anthropic read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out messagesResponse
		if err := json.Unmarshal(raw, &out); err == nil && out.Error != nil && out.Error.Message != "" {
			if out.Error.Type == "not_found_error" && strings.Contains(strings.ToLower(out.Error.Message), "model") {
				return llm.Result{}, llm.ModelNotFound(req.Model)
			}
			return llm.Result{}, llm.Unavailable(fmt.Sprintf("anthropic http %d: %s", resp.StatusCode, out.Error.Message), nil)
		}
		return llm.Result{}, llm.Unavailable(fmt.Sprintf("anthropic http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var out messagesResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.Result{}, llm.Unavailable("anthropic decode response", err)
	}

	var text string
	for _, part := range out.Content {
		if part.Type == "text" {
			text = part.Text
			break
		}
	}
	if text == "" {
		return llm.Result{}, llm.Unavailable("anthropic: empty response content", nil)
	}

	return llm.Result{
		Text: text,
		Usage: llm.Usage{
			InputTokens:  out.Usage.InputTokens,
			OutputTokens: out.Usage.OutputTokens,
			TotalTokens:  out.Usage.InputTokens + out.Usage.OutputTokens,
		},
		Duration: time.Since(start),
	}, nil
}
