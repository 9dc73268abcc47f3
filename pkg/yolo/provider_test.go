package yolo

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

func TestProvider_Name(t *testing.T) {
	p := New("http://localhost", 0.3, 0)
	if p.Name() != "yolo" {
		t.Errorf("Expected name 'yolo', got '%s'", p.Name())
	}
}

func TestProvider_ValidateConfig(t *testing.T) {
	t.Setenv("YOLO_URL", "")
	if err := New("", 0.3, 0).ValidateConfig(providers.Config{}); err == nil || !strings.Contains(err.Error(), "YOLO_URL") {
		t.Errorf("ValidateConfig() error = %v, want YOLO_URL error", err)
	}
	t.Setenv("YOLO_URL", "http://yolo:8866")
	if err := New("", 0.3, 0).ValidateConfig(providers.Config{}); err != nil {
		t.Errorf("ValidateConfig() error = %v", err)
	}
}

func TestProvider_Detect(t *testing.T) {
	tests := []struct {
		name           string
		serverResponse string
		statusCode     int
		expected       []providers.Detection
		expectError    bool
		errorContains  string
	}{
		{
			name:           "two bubbles",
			serverResponse: `{"boxes":[{"xyxy":[10.4,20.6,100.2,200.9],"confidence":0.91},{"xyxy":[300,40,360,220],"confidence":0.55}]}`,
			statusCode:     http.StatusOK,
			expected: []providers.Detection{
				{Box: overlay.Box{X1: 10, Y1: 20, X2: 101, Y2: 201}, Confidence: 0.91},
				{Box: overlay.Box{X1: 300, Y1: 40, X2: 360, Y2: 220}, Confidence: 0.55},
			},
		},
		{
			name:           "no bubbles",
			serverResponse: `{"boxes":[]}`,
			statusCode:     http.StatusOK,
			expected:       []providers.Detection{},
		},
		{
			name:           "server error",
			serverResponse: `model not loaded`,
			statusCode:     http.StatusInternalServerError,
			expectError:    true,
			errorContains:  "yolo API error: 500",
		},
		{
			name:           "invalid JSON",
			serverResponse: `{"boxes":`,
			statusCode:     http.StatusOK,
			expectError:    true,
			errorContains:  "failed to parse JSON response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/detect" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				var req Request
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Errorf("failed to decode request: %v", err)
				}
				if req.Image == "" || req.Confidence != 0.3 || req.IoU != 0.5 {
					t.Errorf("unexpected request: conf=%v iou=%v image=%d bytes", req.Confidence, req.IoU, len(req.Image))
				}
				w.WriteHeader(tt.statusCode)
				w.Write([]byte(tt.serverResponse))
			}))
			defer server.Close()

			got, err := New(server.URL, 0.3, 0).Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
			if tt.expectError {
				if err == nil || !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Detect() error = %v, want containing %q", err, tt.errorContains)
				}
				return
			}
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if len(got) != len(tt.expected) {
				t.Fatalf("Detect() returned %d detections, want %d", len(got), len(tt.expected))
			}
			for i := range got {
				if got[i] != tt.expected[i] {
					t.Errorf("detection %d = %+v, want %+v", i, got[i], tt.expected[i])
				}
			}
		})
	}
}
