package claude

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

func TestProvider_Name(t *testing.T) {
	p := New(providers.Config{})
	if p.Name() != "claude" {
		t.Errorf("Expected name 'claude', got '%s'", p.Name())
	}
}

func TestNew_Model(t *testing.T) {
	if p := New(providers.Config{Model: "gpt-4o-mini"}); p.config.Model != defaultModel {
		t.Errorf("model = %q, want %q", p.config.Model, defaultModel)
	}
	if p := New(providers.Config{Model: "claude-3-5-sonnet-latest"}); p.config.Model != "claude-3-5-sonnet-latest" {
		t.Errorf("model = %q", p.config.Model)
	}
}

func TestProvider_ValidateConfig(t *testing.T) {
	p := New(providers.Config{})

	tests := []struct {
		name          string
		apiKey        string
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid API key",
			apiKey:      "sk-ant-test-key",
			expectError: false,
		},
		{
			name:          "missing API key",
			apiKey:        "",
			expectError:   true,
			errorContains: "ANTHROPIC_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", tt.apiKey)

			err := p.ValidateConfig(providers.Config{Provider: "claude"})

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if tt.expectError && err != nil && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error to contain '%s', got: %v", tt.errorContains, err)
			}
		})
	}
}

func TestProvider_TranslateBatch(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse string
		statusCode     int
		expected       []string
		expectError    bool
		errorContains  string
	}{
		{
			name:       "successful response",
			statusCode: http.StatusOK,
			serverResponse: `{
				"content": [{"type": "text", "text": "[\"cat\", \"dog\"]"}],
				"stop_reason": "end_turn",
				"usage": {"input_tokens": 40, "output_tokens": 8}
			}`,
			expected: []string{"cat", "dog"},
		},
		{
			name:           "chatty reply",
			statusCode:     http.StatusOK,
			serverResponse: `{"content": [{"type": "text", "text": "Here are the translations:\n[\"cat\", \"dog\"]"}]}`,
			expected:       []string{"cat", "dog"},
		},
		{
			name:           "API error",
			statusCode:     http.StatusUnauthorized,
			serverResponse: `{"error": {"type": "authentication_error"}}`,
			expectError:    true,
			errorContains:  "claude API error: 401",
		},
		{
			name:           "no text content",
			statusCode:     http.StatusOK,
			serverResponse: `{"content": []}`,
			expectError:    true,
			errorContains:  "no text content",
		},
		{
			name:           "wrong count",
			statusCode:     http.StatusOK,
			serverResponse: `{"content": [{"type": "text", "text": "[\"cat\"]"}]}`,
			expectError:    true,
			errorContains:  "1 translations for 2 texts",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ANTHROPIC_API_KEY", "sk-ant-test")
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/messages" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				if r.Header.Get("x-api-key") != "sk-ant-test" {
					t.Errorf("missing api key header")
				}
				var req struct {
					Model    string `json:"model"`
					System   string `json:"system"`
					Messages []struct {
						Content string `json:"content"`
					} `json:"messages"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if len(req.Messages) != 1 || req.Messages[0].Content != `["猫","犬"]` {
					t.Errorf("unexpected messages %+v", req.Messages)
				}
				if !strings.Contains(req.System, "from ja to en") {
					t.Errorf("unexpected system prompt %q", req.System)
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.serverResponse))
			}))
			defer server.Close()

			p := New(providers.Config{URL: server.URL, SourceLanguage: "ja", TargetLanguage: "en"})
			got, err := p.TranslateBatch(context.Background(), []string{"猫", "犬"})
			if tt.expectError {
				if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("TranslateBatch() error = %v, want containing %q", err, tt.errorContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("TranslateBatch() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("TranslateBatch() = %v, want %v", got, tt.expected)
			}
		})
	}
}
