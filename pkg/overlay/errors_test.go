package overlay

import (
	"context"
	"fmt"
	"strings"
	"testing"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ""},
		{"plain error", fmt.Errorf("boom"), ""},
		{"direct", NewInvalidGeometryError("unrotate", "zero height"), ErrorInvalidGeometry},
		{"wrapped", fmt.Errorf("region 3: %w", NewAdapterFailureError("ocr", fmt.Errorf("503"))), ErrorAdapterFailure},
		{"cancelled", NewCancelledError("translate", context.Canceled), ErrorCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Error(t *testing.T) {
	err := NewAdapterFailureError("detect", fmt.Errorf("connection refused"))
	msg := err.Error()
	for _, part := range []string{"detect", "ADAPTER_FAILURE", "connection refused"} {
		if !strings.Contains(msg, part) {
			t.Errorf("Error() = %q, missing %q", msg, part)
		}
	}
}

func TestBox_Union(t *testing.T) {
	a := Box{X1: 10, Y1: 10, X2: 20, Y2: 30}
	b := Box{X1: 5, Y1: 25, X2: 15, Y2: 40}
	want := Box{X1: 5, Y1: 10, X2: 20, Y2: 40}
	if got := a.Union(b); got != want {
		t.Errorf("Union() = %v, want %v", got, want)
	}
}

func TestBox_Valid(t *testing.T) {
	tests := []struct {
		name string
		box  Box
		want bool
	}{
		{"positive area", Box{0, 0, 1, 1}, true},
		{"zero width", Box{5, 5, 5, 9}, false},
		{"inverted", Box{9, 5, 5, 9}, false},
		{"negative corner", Box{-1, 0, 5, 5}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.box.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
