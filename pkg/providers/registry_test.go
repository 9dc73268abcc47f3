package providers

import (
	"context"
	"reflect"
	"strings"
	"testing"
)

type fakeTranslator struct{ name string }

func (f fakeTranslator) Name() string { return f.name }
func (f fakeTranslator) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	return make([]string, len(texts)), nil
}

func TestRegistry(t *testing.T) {
	r := NewRegistry[Translator]()
	r.Register(fakeTranslator{name: "Google"})
	r.Register(fakeTranslator{name: "openai"})

	if !r.HasProvider("google") {
		t.Error("HasProvider(google) = false, want true")
	}
	if r.HasProvider("azure") {
		t.Error("HasProvider(azure) = true, want false")
	}

	p, err := r.Get("GOOGLE")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if p.Name() != "Google" {
		t.Errorf("Get().Name() = %q, want %q", p.Name(), "Google")
	}

	if _, err := r.Get("deepl"); err == nil || !strings.Contains(err.Error(), "google, openai") {
		t.Errorf("Get(deepl) error = %v, want list of available providers", err)
	}

	if got, want := r.List(), []string{"google", "openai"}; !reflect.DeepEqual(got, want) {
		t.Errorf("List() = %v, want %v", got, want)
	}
}

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `["Hello"]`, `["Hello"]`},
		{"prefixed", `Here are the translations: ["Hello"]`, `["Hello"]`},
		{"fenced json", "```json\n[\"Hello\"]\n```", `["Hello"]`},
		{"whitespace", "  [\"a\"]  \n", `["a"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.input); got != tt.expected {
				t.Errorf("CleanResponse() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", 600)
	if got := TruncateBody([]byte(long)); !strings.HasSuffix(got, "... (truncated)") || len(got) != 500+len("... (truncated)") {
		t.Errorf("TruncateBody() length = %d", len(got))
	}
	if got := TruncateBody([]byte("short"), 10); got != "short" {
		t.Errorf("TruncateBody(short) = %q", got)
	}
}
