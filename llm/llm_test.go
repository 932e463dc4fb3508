package llm

import (
	"errors"
	"fmt"
	"testing"
)

func TestOptionsClamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Options
		want Options
	}{
		{
			name: "in_range_unchanged",
			in:   Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 200},
			want: Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 200},
		},
		{
			name: "temperature_above_one",
			in:   Options{Temperature: 2.5, TopP: 0.9, MaxTokens: 200},
			want: Options{Temperature: 1, TopP: 0.9, MaxTokens: 200},
		},
		{
			name: "temperature_below_zero",
			in:   Options{Temperature: -0.3, TopP: 0.9, MaxTokens: 200},
			want: Options{Temperature: 0, TopP: 0.9, MaxTokens: 200},
		},
		{
			name: "zero_temperature_is_valid",
			in:   Options{Temperature: 0, TopP: 0.9, MaxTokens: 200},
			want: Options{Temperature: 0, TopP: 0.9, MaxTokens: 200},
		},
		{
			name: "non_positive_max_tokens",
			in:   Options{Temperature: 0.7, TopP: 0.9, MaxTokens: -5},
			want: Options{Temperature: 0.7, TopP: 0.9, MaxTokens: 1},
		},
		{
			name: "top_p_above_one",
			in:   Options{Temperature: 0.7, TopP: 1.8, MaxTokens: 100},
			want: Options{Temperature: 0.7, TopP: 1, MaxTokens: 100},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.in.Clamp(); got != tt.want {
				t.Fatalf("Clamp() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestErrorKinds(t *testing.T) {
	t.Parallel()

	cause := errors.New("connection refused")
	err := Unavailable("ollama chat", cause)

	if !IsUnavailable(err) {
		t.Fatalf("IsUnavailable() = false, want true")
	}
	if IsModelNotFound(err) {
		t.Fatalf("IsModelNotFound() = true, want false")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("errors.Is(err, cause) = false, want true")
	}

	wrapped := fmt.Errorf("dispatch: %w", err)
	if !IsUnavailable(wrapped) {
		t.Fatalf("IsUnavailable(wrapped) = false, want true")
	}

	nf := ModelNotFound("llama3.2:3b")
	if !IsModelNotFound(nf) {
		t.Fatalf("IsModelNotFound() = false, want true")
	}
	if IsUnavailable(nf) {
		t.Fatalf("IsUnavailable() = true, want false")
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	err := Unavailable("chat request", errors.New("dial tcp: timeout"))
	got := err.Error()
	want := "llm unavailable: chat request: dial tcp: timeout"
	if got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}
}
