// Package stablediffusion talks to an Automatic1111-compatible web API.
package stablediffusion

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dimanchick22/alicebot/imagegen"
)

const defaultBaseURL = "http://127.0.0.1:7860"

type Client struct {
	BaseURL string
	// Model overrides the loaded checkpoint per request when set.
	Model string
	HTTP  *http.Client
}

func New(baseURL, model string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type txt2imgRequest struct {
	Prompt           string            `json:"prompt"`
	NegativePrompt   string            `json:"negative_prompt,omitempty"`
	Width            int               `json:"width"`
	Height           int               `json:"height"`
	Steps            int               `json:"steps"`
	CfgScale         float64           `json:"cfg_scale"`
	Seed             int64             `json:"seed"`
	OverrideSettings map[string]string `json:"override_settings,omitempty"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
	Detail string   `json:"detail"`
}

// Generate runs one txt2img round trip and returns the decoded PNG.
func (c *Client) Generate(ctx context.Context, p imagegen.Prompt) (imagegen.Result, error) {
	start := time.Now()

	in := txt2imgRequest{
		Prompt:         p.Text,
		NegativePrompt: p.NegativePrompt,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		CfgScale:       p.CfgScale,
		Seed:           p.Seed,
	}
	if in.Width <= 0 {
		in.Width = 512
	}
	if in.Height <= 0 {
		in.Height = 512
	}
	if in.Steps <= 0 {
		in.Steps = 20
	}
	if in.CfgScale <= 0 {
		in.CfgScale = 7.5
	}
	if in.Seed == 0 {
		in.Seed = -1
	}
	if c.Model != "" {
		in.OverrideSettings = map[string]string{"sd_model_checkpoint": c.Model}
	}

	body, err := json.Marshal(in)
	if err != nil {
		return imagegen.Result{}, imagegen.Failed("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/sdapi/v1/txt2img", bytes.NewReader(body))
	if err != nil {
		return imagegen.Result{}, imagegen.Failed("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return imagegen.Result{}, imagegen.Failed("txt2img request", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return imagegen.Result{}, imagegen.Failed("read response", err)
	}

	var out txt2imgResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode != http.StatusOK {
			return imagegen.Result{}, imagegen.Failed(fmt.Sprintf("backend status %d", resp.StatusCode), nil)
		}
		return imagegen.Result{}, imagegen.Failed("decode response", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := out.Detail
		if msg == "" {
			msg = fmt.Sprintf("backend status %d", resp.StatusCode)
		}
		return imagegen.Result{}, imagegen.Failed(msg, nil)
	}
	if len(out.Images) == 0 {
		return imagegen.Result{}, imagegen.Failed("backend returned no image", nil)
	}

	png, err := base64.StdEncoding.DecodeString(out.Images[0])
	if err != nil {
		return imagegen.Result{}, imagegen.Failed("decode image data", err)
	}
	return imagegen.Result{PNG: png, Duration: time.Since(start)}, nil
}
