// Package cycle runs one capture-to-render pass at a time and reports its
// progress as a small state machine.
package cycle

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/capture"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/compositor"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/textblock"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
)

type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseCapturing   Phase = "capturing"
	PhaseDetecting   Phase = "detecting"
	PhaseExtracting  Phase = "extracting"
	PhaseTranslating Phase = "translating"
	PhaseRendering   Phase = "rendering"
	PhaseComplete    Phase = "complete"
	PhaseError       Phase = "error"
	PhaseCancelled   Phase = "cancelled"
)

// Terminal reports whether p ends a cycle
func (p Phase) Terminal() bool {
	return p == PhaseComplete || p == PhaseError || p == PhaseCancelled
}

const (
	StatusProcessing = "Processing image..."
	StatusComplete   = "Complete!"
	StatusNoText     = "No text found"
	StatusCancelled  = "Cancelled"
)

// ErrBusy is returned by Run while another cycle is active
var ErrBusy = errors.New("cycle already running")

// RegionDetector finds candidate text regions in a frame
type RegionDetector interface {
	Detect(ctx context.Context, frame *overlay.Frame) ([]overlay.Region, error)
}

// Extractor turns regions into text blocks, in region order
type Extractor interface {
	ExtractAll(ctx context.Context, regions []overlay.Region) []overlay.TextBlock
}

// Translator returns exactly one translation per text
type Translator interface {
	Translate(ctx context.Context, texts []string) ([]string, error)
}

// Renderer displays the pairs of a completed cycle
type Renderer interface {
	Render(frame *overlay.Frame, pairs []compositor.Pair) error
	Clear() error
	Status(msg string)
	SetVisible(visible bool) error
	Visible() bool
}

// Deps are the collaborators of a Machine
type Deps struct {
	Capturer   capture.Capturer
	Detector   RegionDetector
	Extractor  Extractor
	Grouper    textblock.Grouper
	Policy     textblock.Policy
	Translator Translator
	Renderer   Renderer

	// DebugDir receives frame.png and bubbles.png for every cycle when set
	DebugDir string

	// OnTransition is called synchronously on every phase change
	OnTransition func(from, to Phase)
}

// State is a snapshot of the active or most recent cycle
type State struct {
	ID           string              `json:"id,omitempty"`
	Phase        Phase               `json:"phase"`
	Frame        *overlay.Frame      `json:"-"`
	Regions      []overlay.Region    `json:"-"`
	Blocks       []overlay.TextBlock `json:"blocks,omitempty"`
	Translations []string            `json:"translations,omitempty"`
	StartedAt    time.Time           `json:"started_at,omitzero"`
	Visible      bool                `json:"visible"`
}

// Result describes a finished cycle
type Result struct {
	ID      string
	Phase   Phase
	Status  string
	Pairs   []compositor.Pair
	Timings map[string]time.Duration
	Err     error
}

// Machine enforces a single active cycle
type Machine struct {
	deps Deps

	// mu guards the gate: running and cancel change together
	mu      sync.Mutex
	running bool
	state   State
	cancel  context.CancelFunc
}

func New(deps Deps) *Machine {
	if deps.Policy == "" {
		deps.Policy = textblock.RightToLeft
	}
	return &Machine{deps: deps, state: State{Phase: PhaseIdle}}
}

// State returns a copy of the current state
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.state
	s.Regions = append([]overlay.Region(nil), s.Regions...)
	s.Blocks = append([]overlay.TextBlock(nil), s.Blocks...)
	s.Translations = append([]string(nil), s.Translations...)
	s.Visible = m.deps.Renderer.Visible()
	return s
}

// Running reports whether a cycle is in flight
func (m *Machine) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Cancel stops the active cycle at its next stage boundary. It reports
// whether a cycle was active.
func (m *Machine) Cancel() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel == nil {
		return false
	}
	slog.Info("Cancelling cycle", "cycle", m.state.ID, "phase", m.state.Phase)
	m.cancel()
	return true
}

// ToggleVisibility flips overlay visibility and returns the new value. The
// active cycle is not affected.
func (m *Machine) ToggleVisibility() (bool, error) {
	visible := !m.deps.Renderer.Visible()
	if err := m.deps.Renderer.SetVisible(visible); err != nil {
		return visible, fmt.Errorf("failed to toggle overlay: %w", err)
	}
	slog.Info("Overlay visibility changed", "visible", visible)
	return visible, nil
}

// Run executes one cycle. It returns ErrBusy without side effects when a
// cycle is already active. The returned error is the cycle's failure, if
// any; a cancelled cycle returns a CANCELLED error.
func (m *Machine) Run(ctx context.Context) (*Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r := &run{
		m:       m,
		ctx:     ctx,
		result:  &Result{ID: uuid.NewString(), Timings: make(map[string]time.Duration)},
		started: time.Now(),
	}

	m.mu.Lock()
	if m.running {
		active := m.state.ID
		m.mu.Unlock()
		slog.Warn("Cycle trigger ignored", "active", active, "err", ErrBusy)
		return nil, ErrBusy
	}
	m.running = true
	m.cancel = cancel
	m.state = State{ID: r.result.ID, Phase: PhaseIdle, StartedAt: r.started}
	m.mu.Unlock()

	slog.Info("Cycle started", "cycle", r.result.ID)
	r.execute()
	r.finish()
	m.transition(PhaseIdle)

	m.mu.Lock()
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	return r.result, r.result.Err
}

func (m *Machine) transition(to Phase) {
	m.mu.Lock()
	from, id := m.state.Phase, m.state.ID
	m.state.Phase = to
	m.mu.Unlock()

	slog.Debug("Cycle phase changed", "cycle", id, "from", from, "to", to)
	if m.deps.OnTransition != nil {
		m.deps.OnTransition(from, to)
	}
}

func (m *Machine) update(fn func(s *State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&m.state)
}

// run is the working state of one cycle
type run struct {
	m       *Machine
	ctx     context.Context
	result  *Result
	started time.Time
}

func (r *run) stage(name string, phase Phase, fn func()) {
	r.m.transition(phase)
	start := time.Now()
	fn()
	r.result.Timings[name] = time.Since(start)
}

// stopped ends the cycle as cancelled if a stop was requested
func (r *run) stopped() bool {
	if err := r.ctx.Err(); err != nil {
		r.end(PhaseCancelled, StatusCancelled, overlay.NewCancelledError("cycle", err))
		return true
	}
	return false
}

func (r *run) end(phase Phase, status string, err error) {
	r.result.Phase = phase
	r.result.Status = status
	r.result.Err = err
}

func (r *run) fail(err error) {
	r.end(PhaseError, "Error: "+err.Error(), err)
}

func (r *run) execute() {
	d := r.m.deps
	d.Renderer.Status(StatusProcessing)

	var frame *overlay.Frame
	var err error
	r.stage("capture", PhaseCapturing, func() {
		frame, err = d.Capturer.Capture(r.ctx)
	})
	if r.stopped() {
		return
	}
	if err != nil {
		r.fail(fmt.Errorf("capture failed: %w", err))
		return
	}
	r.m.update(func(s *State) { s.Frame = frame })

	// Detection and OCR are never interrupted; a stop discards their output.
	var regions []overlay.Region
	r.stage("detect", PhaseDetecting, func() {
		regions, err = d.Detector.Detect(context.WithoutCancel(r.ctx), frame)
	})
	if r.stopped() {
		return
	}
	if err != nil {
		slog.Error("Detection failed", "cycle", r.result.ID, "code", overlay.CodeOf(err), "err", err)
		regions = nil
	}
	r.m.update(func(s *State) { s.Regions = regions })
	if d.DebugDir != "" {
		r.dumpDebug(frame, regions)
	}
	if len(regions) == 0 {
		r.empty()
		return
	}

	var blocks []overlay.TextBlock
	r.stage("extract", PhaseExtracting, func() {
		blocks = d.Extractor.ExtractAll(context.WithoutCancel(r.ctx), regions)
		blocks = d.Grouper.Scaled(frame.Scale).Group(blocks)
		blocks = textblock.Sort(blocks, d.Policy)
	})
	if r.stopped() {
		return
	}
	r.m.update(func(s *State) { s.Blocks = blocks })
	if len(blocks) == 0 {
		r.empty()
		return
	}

	texts := make([]string, len(blocks))
	for i, b := range blocks {
		texts[i] = b.Text
	}
	var translations []string
	r.stage("translate", PhaseTranslating, func() {
		translations, err = d.Translator.Translate(r.ctx, texts)
	})
	if r.stopped() {
		return
	}
	if err != nil {
		if overlay.Is(err, overlay.ErrorCancelled) {
			r.end(PhaseCancelled, StatusCancelled, err)
			return
		}
		r.fail(err)
		return
	}
	r.m.update(func(s *State) { s.Translations = translations })

	if len(translations) != len(blocks) {
		r.fail(overlay.NewInternalError("render", "%d translations for %d blocks", len(translations), len(blocks)))
		return
	}

	pairs := make([]compositor.Pair, len(blocks))
	for i := range blocks {
		pairs[i] = compositor.Pair{Block: blocks[i], Translation: translations[i]}
	}
	r.stage("render", PhaseRendering, func() {
		err = d.Renderer.Render(frame, pairs)
	})
	if err != nil {
		r.fail(fmt.Errorf("render failed: %w", err))
		return
	}
	r.result.Pairs = pairs
	r.end(PhaseComplete, StatusComplete, nil)
}

// empty completes a cycle that found nothing to translate
func (r *run) empty() {
	if err := r.m.deps.Renderer.Clear(); err != nil {
		slog.Warn("Failed to clear overlay", "cycle", r.result.ID, "err", err)
	}
	r.end(PhaseComplete, StatusNoText, nil)
}

func (r *run) finish() {
	r.m.transition(r.result.Phase)
	r.m.deps.Renderer.Status(r.result.Status)

	attrs := []any{
		"cycle", r.result.ID,
		"phase", r.result.Phase,
		"pairs", len(r.result.Pairs),
		"duration", time.Since(r.started),
	}
	for _, name := range []string{"capture", "detect", "extract", "translate", "render"} {
		if d, ok := r.result.Timings[name]; ok {
			attrs = append(attrs, name, d)
		}
	}
	switch r.result.Phase {
	case PhaseError:
		slog.Error("Cycle failed", append(attrs, "code", overlay.CodeOf(r.result.Err), "err", r.result.Err)...)
	default:
		slog.Info("Cycle finished", append(attrs, "status", r.result.Status)...)
	}
}

func (r *run) dumpDebug(frame *overlay.Frame, regions []overlay.Region) {
	dir := r.m.deps.DebugDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("Failed to create debug dir", "dir", dir, "err", err)
		return
	}
	if err := imaging.Save(frame.Image, filepath.Join(dir, "frame.png")); err != nil {
		slog.Warn("Failed to save debug frame", "err", err)
	}

	boxes := make([]overlay.Box, len(regions))
	for i, region := range regions {
		boxes[i] = region.Box
	}
	marked := imaging.Clone(frame.Raw)
	compositor.Outline(marked, boxes, color.NRGBA{R: 255, A: 255}, 2)
	if err := imaging.Save(marked, filepath.Join(dir, "bubbles.png")); err != nil {
		slog.Warn("Failed to save debug detections", "err", err)
	}
}
