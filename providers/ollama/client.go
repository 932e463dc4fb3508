package ollama

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

type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []llm.Message `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options"`
}

type chatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	Error           string `json:"error,omitempty"`
}

// Chat performs a single non-streaming chat call against /api/chat.
// Transport and backend failures map to llm.KindUnavailable; one attempt,
// no retry.
func (c *Client) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	start := time.Now()
	opts := req.Options.Clamp()

	body := chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   false,
		Options: chatOptions{
			Temperature: opts.Temperature,
			TopP:        opts.TopP,
			NumPredict:  opts.MaxTokens,
		},
	}
	b, err := json.Marshal(body)
	if err != nil {
		return llm.Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/chat", bytes.NewReader(b))
	if err != nil {
		return llm.Result{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return llm.Result{}, llm.Unavailable("ollama chat request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Result{}, llm.Unavailable("ollama read response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var out chatResponse
		if err := json.Unmarshal(raw, &out); err == nil && out.Error != "" {
			if resp.StatusCode == http.StatusNotFound && strings.Contains(strings.ToLower(out.Error), "model") {
				return llm.Result{}, llm.ModelNotFound(req.Model)
			}
			return llm.Result{}, llm.Unavailable(fmt.Sprintf("ollama http %d: %s", resp.StatusCode, out.Error), nil)
		}
		return llm.Result{}, llm.Unavailable(fmt.Sprintf("ollama http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}

	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return llm.Result{}, llm.Unavailable("ollama decode response", err)
	}
	if out.Error != "" {
		return llm.Result{}, llm.Unavailable("ollama: "+out.Error, nil)
	}

	return llm.Result{
		Text: out.Message.Content,
		Usage: llm.Usage{
			InputTokens:  out.PromptEvalCount,
			OutputTokens: out.EvalCount,
			TotalTokens:  out.PromptEvalCount + out.EvalCount,
		},
		Duration: time.Since(start),
	}, nil
}

// ModelInfo describes one installed model as reported by /api/tags.
type ModelInfo struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modified_at"`
}

type listModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels returns the models installed on the backend.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, llm.Unavailable("ollama list models", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, llm.Unavailable(fmt.Sprintf("ollama http %d on /api/tags", resp.StatusCode), nil)
	}

	var out listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, llm.Unavailable("ollama decode model list", err)
	}
	return out.Models, nil
}

// CheckRunning verifies the server answers on its base URL.
func (c *Client) CheckRunning(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return llm.Unavailable("ollama not reachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return llm.Unavailable(fmt.Sprintf("ollama http %d on health check", resp.StatusCode), nil)
	}
	return nil
}
