package azure

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

func TestProvider_Name(t *testing.T) {
	p := New("jpn", 0)
	if p.Name() != "azure" {
		t.Errorf("Expected name 'azure', got '%s'", p.Name())
	}
}

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"jpn+jpn_vert": "ja",
		"jpn_vert":     "ja",
		"":             "ja",
		"eng":          "en",
		"kor+eng":      "ko",
		"fr":           "fr",
	}
	for in, want := range tests {
		if got := languageCode(in); got != want {
			t.Errorf("languageCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestProvider_ValidateConfig(t *testing.T) {
	p := New("jpn", 0)

	tests := []struct {
		name          string
		endpoint      string
		apiKey        string
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid config",
			endpoint:    "https://test.cognitiveservices.azure.com",
			apiKey:      "test-key",
			expectError: false,
		},
		{
			name:          "missing endpoint",
			endpoint:      "",
			apiKey:        "test-key",
			expectError:   true,
			errorContains: "AZURE_OCR_ENDPOINT",
		},
		{
			name:          "missing API key",
			endpoint:      "https://test.cognitiveservices.azure.com",
			apiKey:        "",
			expectError:   true,
			errorContains: "AZURE_OCR_API_KEY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AZURE_OCR_ENDPOINT", tt.endpoint)
			t.Setenv("AZURE_OCR_API_KEY", tt.apiKey)

			err := p.ValidateConfig(providers.Config{Provider: "azure"})

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

const succeeded = `{
	"status": "succeeded",
	"analyzeResult": {
		"readResults": [{
			"lines": [
				{
					"text": "吾輩は猫である",
					"boundingBox": [10, 5, 90.4, 5, 90.4, 25.6, 10, 25.6],
					"words": [{"confidence": 0.9}, {"confidence": 0.7}]
				},
				{"text": "名前はまだ無い", "boundingBox": [10, 30, 80, 30, 80, 50, 10, 50]},
				{"text": "broken", "boundingBox": [1, 2]}
			]
		}]
	}
}`

func TestProvider_Recognize(t *testing.T) {
	t.Setenv("AZURE_OCR_API_KEY", "test-key")

	var polls atomic.Int32
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
			t.Errorf("missing subscription key")
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/vision/v3.2/read/analyze":
			if r.URL.Query().Get("language") != "ja" {
				t.Errorf("language = %q", r.URL.Query().Get("language"))
			}
			w.Header().Set("Operation-Location", server.URL+"/operations/1")
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodGet && r.URL.Path == "/operations/1":
			if polls.Add(1) == 1 {
				w.Write([]byte(`{"status": "running"}`))
				return
			}
			w.Write([]byte(succeeded))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	p := New("jpn+jpn_vert", 5*time.Second)
	p.Endpoint = server.URL
	p.PollInterval = time.Millisecond

	lines, err := p.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 100, 60)))
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("Recognize() returned %d lines, want 2", len(lines))
	}
	if lines[0].Text != "吾輩は猫である" || lines[0].Poly[2] != (overlay.Point{X: 90, Y: 26}) {
		t.Errorf("first line = %+v", lines[0])
	}
	if lines[0].Score < 0.799 || lines[0].Score > 0.801 {
		t.Errorf("first line score = %v, want mean word confidence 0.8", lines[0].Score)
	}
	if lines[1].Score != 1 {
		t.Errorf("line without words scored %v, want 1", lines[1].Score)
	}
	if polls.Load() != 2 {
		t.Errorf("polls = %d, want 2", polls.Load())
	}
}

func TestProvider_Recognize_Errors(t *testing.T) {
	tests := []struct {
		name          string
		handler       http.HandlerFunc
		errorContains string
	}{
		{
			name: "rejected",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error": {"code": "401"}}`))
			},
			errorContains: "azure OCR API error: 401",
		},
		{
			name: "no operation location",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusAccepted)
			},
			errorContains: "no operation location",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AZURE_OCR_API_KEY", "test-key")
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			p := New("jpn", 5*time.Second)
			p.Endpoint = server.URL
			_, err := p.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
			if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Recognize() error = %v, want containing %q", err, tt.errorContains)
			}
		})
	}
}

func TestProvider_Recognize_Failed(t *testing.T) {
	t.Setenv("AZURE_OCR_API_KEY", "test-key")
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", server.URL+"/operations/2")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		w.Write([]byte(`{"status": "failed"}`))
	}))
	defer server.Close()

	p := New("jpn", 5*time.Second)
	p.Endpoint = server.URL
	p.PollInterval = time.Millisecond
	if _, err := p.Recognize(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10))); err == nil || !strings.Contains(err.Error(), "analysis failed") {
		t.Errorf("Recognize() error = %v", err)
	}
}
