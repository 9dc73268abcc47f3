package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/StreyKenD/AutoTranslationJPEN/internal/config"
	"github.com/StreyKenD/AutoTranslationJPEN/internal/utils"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/azure"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/bubble"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/cache"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/capture"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/claude"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/compositor"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/cycle"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/detect"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/extract"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/gemini"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/google"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/history"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/ollama"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/openai"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/paddle"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/tesseract"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/textblock"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/yolo"
)

func detectorRegistry(cfg *config.Config) *providers.Registry[providers.Detector] {
	r := providers.NewRegistry[providers.Detector]()
	r.Register(bubble.New())
	r.Register(yolo.New(cfg.Detector.URL, cfg.Detector.MinConfidence, cfg.Detector.Timeout))
	return r
}

func recognizerRegistry(cfg *config.Config) *providers.Registry[providers.Recognizer] {
	r := providers.NewRegistry[providers.Recognizer]()
	r.Register(tesseract.New(cfg.OCR.Language, os.Getenv("TESSDATA_PREFIX")))
	r.Register(paddle.New(cfg.OCR.URL, cfg.OCR.Timeout))
	r.Register(azure.New(cfg.OCR.Language, cfg.OCR.Timeout))
	return r
}

func translatorConfig(cfg *config.Config) providers.Config {
	return providers.Config{
		Provider:       cfg.Translator.Provider,
		Model:          cfg.Translator.Model,
		URL:            cfg.Translator.URL,
		SourceLanguage: cfg.Translator.Source,
		TargetLanguage: cfg.Translator.Target,
		Temperature:    cfg.Translator.Temperature,
		Timeout:        cfg.Translator.Timeout,
	}
}

func translatorRegistry(cfg *config.Config) *providers.Registry[providers.Translator] {
	pc := translatorConfig(cfg)
	r := providers.NewRegistry[providers.Translator]()
	r.Register(google.New(cfg.Translator.Source, cfg.Translator.Target, cfg.Translator.Timeout))
	r.Register(openai.New(pc))
	r.Register(ollama.New(pc))
	r.Register(claude.New(pc))
	r.Register(gemini.New(pc))
	return r
}

func newCapturer(cfg *config.Config) capture.Capturer {
	opts := capture.Options{
		UpscaleBelow:  cfg.Capture.UpscaleBelow,
		UpscaleFactor: cfg.Capture.UpscaleFactor,
		Binarize:      cfg.Capture.Binarize,
	}
	if cfg.Capture.Source == "file" {
		return &capture.File{Path: cfg.Capture.Image, Left: cfg.Region.Left, Top: cfg.Region.Top, Options: opts}
	}
	return &capture.Screen{
		Left:    cfg.Region.Left,
		Top:     cfg.Region.Top,
		Width:   cfg.Region.Width,
		Height:  cfg.Region.Height,
		Options: opts,
	}
}

func newStyle(cfg *config.Config) (*compositor.Style, error) {
	return compositor.NewStyle(compositor.StyleOptions{
		FontPath:     cfg.Overlay.FontPath,
		BlurRadius:   cfg.Overlay.BlurRadius,
		FillAlpha:    cfg.Overlay.FillAlpha,
		CornerRadius: cfg.Overlay.Radius,
		FillColor:    cfg.Overlay.FillColor,
		TextColor:    cfg.Overlay.TextColor,
		OutlineColor: cfg.Overlay.Outline,
		DebugBoxes:   cfg.Overlay.DebugBoxes,
	})
}

// pipeline owns everything a running overlay needs
type pipeline struct {
	machine *cycle.Machine
	surface *compositor.PNGSurface
	store   history.Store
}

func buildPipeline(ctx context.Context, cfg *config.Config, capturer capture.Capturer) (*pipeline, error) {
	detector, err := detectorRegistry(cfg).Get(cfg.Detector.Provider)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	recognizer, err := recognizerRegistry(cfg).Get(cfg.OCR.Provider)
	if err != nil {
		return nil, fmt.Errorf("ocr: %w", err)
	}
	translator, err := translatorRegistry(cfg).Get(cfg.Translator.Provider)
	if err != nil {
		return nil, fmt.Errorf("translator: %w", err)
	}

	pc := translatorConfig(cfg)
	if err := errors.Join(
		providers.Validate(detector, pc),
		providers.Validate(recognizer, pc),
		providers.Validate(translator, pc),
	); err != nil {
		return nil, fmt.Errorf("provider configuration: %w", err)
	}

	policy, err := textblock.ParsePolicy(cfg.Ordering.Policy)
	if err != nil {
		return nil, err
	}

	style, err := newStyle(cfg)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(ctx, cfg.History.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open history %s: %w", utils.MaskSensitiveData(cfg.History.DSN), err)
	}
	c, err := cache.New(ctx, store, translator, cache.Options{Revalidate: cfg.Translator.Revalidate})
	if err != nil {
		store.Close()
		return nil, err
	}

	engine := extract.New(recognizer)
	engine.MinLineScore = cfg.OCR.MinLineScore
	engine.VerticalRatio = cfg.OCR.VerticalRatio
	engine.Concurrency = cfg.OCR.Concurrency

	surface := compositor.NewPNGSurface(cfg.Overlay.Output)

	machine := cycle.New(cycle.Deps{
		Capturer:   capturer,
		Detector:   detect.New(detector, cfg.Detector.MinConfidence),
		Extractor:  engine,
		Grouper:    textblock.Grouper{MaxDX: cfg.Grouping.MaxDX, MaxDY: cfg.Grouping.MaxDY},
		Policy:     policy,
		Translator: c,
		Renderer:   compositor.New(surface, style),
		DebugDir:   cfg.Debug.Dir,
	})

	slog.Info("Pipeline ready",
		"detector", detector.Name(),
		"ocr", recognizer.Name(),
		"translator", translator.Name(),
		"ordering", policy,
		"history", utils.MaskSensitiveData(cfg.History.DSN),
		"cached", c.Len())

	return &pipeline{machine: machine, surface: surface, store: store}, nil
}

func (p *pipeline) Close() error {
	return p.store.Close()
}
