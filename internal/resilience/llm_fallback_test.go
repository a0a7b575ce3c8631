package resilience

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/skillprobe/pkg/provider/llm"
	llmmock "github.com/MrWong99/skillprobe/pkg/provider/llm/mock"
)

func TestLLMFallback_Complete(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		primary       *llmmock.Provider
		want          string
		wantSecondary int
	}{
		{
			name:    "primary answers",
			primary: &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `["Welding"]`}},
			want:    `["Welding"]`,
		},
		{
			name:          "primary errors",
			primary:       &llmmock.Provider{CompleteErr: errors.New("rate limited")},
			want:          `["Forklift Operation"]`,
			wantSecondary: 1,
		},
		{
			name:          "primary returns nothing",
			primary:       &llmmock.Provider{},
			want:          `["Forklift Operation"]`,
			wantSecondary: 1,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			secondary := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: `["Forklift Operation"]`}}
			fb := NewLLMFallback(tc.primary, "openai", FallbackConfig{})
			fb.AddFallback("ollama", secondary)

			resp, err := fb.Complete(context.Background(), llm.CompletionRequest{
				Messages: []llm.Message{{Role: "user", Content: "which skills?"}},
			})
			if err != nil {
				t.Fatalf("Complete: %v", err)
			}
			if resp.Content != tc.want {
				t.Errorf("content = %q, want %q", resp.Content, tc.want)
			}
			if got := len(secondary.Calls()); got != tc.wantSecondary {
				t.Errorf("secondary calls = %d, want %d", got, tc.wantSecondary)
			}
			if got := tc.primary.Calls(); len(got) != 1 || got[0].Req.Messages[0].Content != "which skills?" {
				t.Errorf("primary calls = %+v", got)
			}
		})
	}
}

func TestLLMFallback_AllFail(t *testing.T) {
	t.Parallel()
	fb := NewLLMFallback(&llmmock.Provider{CompleteErr: errors.New("a")}, "a", FallbackConfig{})
	fb.AddFallback("b", &llmmock.Provider{CompleteErr: errors.New("b")})

	if _, err := fb.Complete(context.Background(), llm.CompletionRequest{}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
	if got := fb.Group().Names(); len(got) != 2 {
		t.Errorf("Names() = %v", got)
	}
}
