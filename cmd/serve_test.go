package cmd

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/cycle"
	"github.com/disintegration/imaging"
)

type fakeController struct {
	mu        sync.Mutex
	running   bool
	runs      int
	cancelled bool
	visible   bool
	ran       chan struct{}
}

func (f *fakeController) Run(ctx context.Context) (*cycle.Result, error) {
	f.mu.Lock()
	f.runs++
	f.mu.Unlock()
	if f.ran != nil {
		f.ran <- struct{}{}
	}
	return &cycle.Result{Phase: cycle.PhaseComplete}, nil
}

func (f *fakeController) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeController) Cancel() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = f.running
	return f.running
}

func (f *fakeController) ToggleVisibility() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = !f.visible
	return f.visible, nil
}

func (f *fakeController) State() cycle.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	phase := cycle.PhaseIdle
	if f.running {
		phase = cycle.PhaseTranslating
	}
	return cycle.State{ID: "c1", Phase: phase, Visible: f.visible}
}

type fakeSnapshot struct{ img image.Image }

func (f fakeSnapshot) Snapshot() image.Image { return f.img }

func TestControlHandler_Methods(t *testing.T) {
	h := newControlHandler(context.Background(), &fakeController{}, fakeSnapshot{})
	tests := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/cycle"},
		{http.MethodGet, "/api/toggle"},
		{http.MethodGet, "/api/stop"},
		{http.MethodPost, "/api/status"},
		{http.MethodPost, "/overlay.png"},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("status = %d, want 405", rec.Code)
			}
		})
	}
}

func TestControlHandler_Cycle(t *testing.T) {
	c := &fakeController{ran: make(chan struct{}, 1)}
	h := newControlHandler(context.Background(), c, fakeSnapshot{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	select {
	case <-c.ran:
	case <-time.After(5 * time.Second):
		t.Fatal("cycle was not started")
	}

	c.mu.Lock()
	c.running = true
	c.mu.Unlock()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/cycle", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("busy status = %d, want 409", rec.Code)
	}
	var body struct {
		Error string      `json:"error"`
		State cycle.State `json:"state"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Error != cycle.ErrBusy.Error() || body.State.Phase != cycle.PhaseTranslating {
		t.Errorf("busy body = %+v", body)
	}
	if c.runs != 1 {
		t.Errorf("runs = %d, want 1", c.runs)
	}
}

func TestControlHandler_ToggleStopStatus(t *testing.T) {
	c := &fakeController{visible: true, running: true}
	h := newControlHandler(context.Background(), c, fakeSnapshot{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/toggle", nil))
	var toggled map[string]bool
	json.NewDecoder(rec.Body).Decode(&toggled)
	if rec.Code != http.StatusOK || toggled["visible"] {
		t.Errorf("toggle = %d %v, want hidden", rec.Code, toggled)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stop", nil))
	var stopped map[string]bool
	json.NewDecoder(rec.Body).Decode(&stopped)
	if !stopped["cancelled"] || !c.cancelled {
		t.Errorf("stop = %v, want cancelled", stopped)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	var state cycle.State
	if err := json.NewDecoder(rec.Body).Decode(&state); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if state.ID != "c1" || state.Visible {
		t.Errorf("status = %+v", state)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestControlHandler_Overlay(t *testing.T) {
	rec := httptest.NewRecorder()
	newControlHandler(context.Background(), &fakeController{}, fakeSnapshot{}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/overlay.png", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status before first frame = %d, want 404", rec.Code)
	}

	img := image.NewRGBA(image.Rect(0, 0, 32, 24))
	rec = httptest.NewRecorder()
	newControlHandler(context.Background(), &fakeController{}, fakeSnapshot{img: img}).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/overlay.png", nil))
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("overlay = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	decoded, err := imaging.Decode(rec.Body)
	if err != nil {
		t.Fatalf("overlay is not an image: %v", err)
	}
	if decoded.Bounds().Dx() != 32 || decoded.Bounds().Dy() != 24 {
		t.Errorf("overlay size = %v", decoded.Bounds())
	}
}
