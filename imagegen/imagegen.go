// Package imagegen wraps the diffusion backend: a safety pre-check, the
// Generator contract implemented per backend, and a PNG writer for the
// output directory.
package imagegen

import (
	"context"
	"time"
)

// DefaultNegativePrompt steers the backend away from common artifacts.
const DefaultNegativePrompt = "lowres, bad anatomy, bad hands, text, error, " +
	"missing fingers, extra digit, fewer digits, cropped, worst quality, low quality"

// Prompt describes one generation request.
type Prompt struct {
	Text           string
	NegativePrompt string
	Width          int
	Height         int
	Steps          int
	CfgScale       float64
	Seed           int64
}

// NewPrompt builds a request with the deployment defaults. Seed -1 lets
// the backend pick one.
func NewPrompt(text string) Prompt {
	return Prompt{
		Text:           text,
		NegativePrompt: DefaultNegativePrompt,
		Width:          512,
		Height:         512,
		Steps:          20,
		CfgScale:       7.5,
		Seed:           -1,
	}
}

// Result is a finished generation. Path is set once the PNG is stored.
type Result struct {
	PNG      []byte
	Path     string
	Duration time.Duration
}

// Generator produces an image for a prompt. Implementations block for the
// full backend round trip; no retries.
type Generator interface {
	Generate(ctx context.Context, p Prompt) (Result, error)
}

// Service applies the safety policy, delegates to the backend, and stores
// the produced PNG under the output directory.
type Service struct {
	backend     Generator
	outputDir   string
	safetyCheck bool
}

func NewService(backend Generator, outputDir string, safetyCheck bool) *Service {
	return &Service{backend: backend, outputDir: outputDir, safetyCheck: safetyCheck}
}

// Generate runs the pre-check, the backend call, and the save. The
// returned error is always one of this package's kinds.
func (s *Service) Generate(ctx context.Context, description string) (Result, error) {
	if s.safetyCheck {
		if err := CheckPrompt(description); err != nil {
			return Result{}, err
		}
	}
	res, err := s.backend.Generate(ctx, NewPrompt(description))
	if err != nil {
		return Result{}, err
	}
	path, err := Save(s.outputDir, res.PNG)
	if err != nil {
		return Result{}, Failed("save image", err)
	}
	res.Path = path
	return res, nil
}
