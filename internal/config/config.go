// Package config loads the overlay settings from defaults, an optional YAML
// file and JPEN_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"
)

// Config holds every tunable of the overlay pipeline
type Config struct {
	Region     Region     `yaml:"region"`
	Capture    Capture    `yaml:"capture"`
	Detector   Detector   `yaml:"detector"`
	OCR        OCR        `yaml:"ocr"`
	Grouping   Grouping   `yaml:"grouping"`
	Ordering   Ordering   `yaml:"ordering"`
	Translator Translator `yaml:"translator"`
	History    History    `yaml:"history"`
	Overlay    Overlay    `yaml:"overlay"`
	Control    Control    `yaml:"control"`
	Debug      Debug      `yaml:"debug"`
}

// Region is the watched screen rectangle in logical pixels
type Region struct {
	Left   int `yaml:"left"`
	Top    int `yaml:"top"`
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type Capture struct {
	// Source is "screen" or "file"
	Source string `yaml:"source"`
	Image  string `yaml:"image"`
	// Captures narrower than UpscaleBelow are upscaled by UpscaleFactor
	UpscaleBelow  int     `yaml:"upscale_below"`
	UpscaleFactor float64 `yaml:"upscale_factor"`
	Binarize      bool    `yaml:"binarize"`
}

type Detector struct {
	Provider      string        `yaml:"provider"`
	URL           string        `yaml:"url"`
	MinConfidence float64       `yaml:"min_confidence"`
	Timeout       time.Duration `yaml:"timeout"`
}

type OCR struct {
	Provider      string        `yaml:"provider"`
	Language      string        `yaml:"language"`
	URL           string        `yaml:"url"`
	MinLineScore  float64       `yaml:"min_line_score"`
	VerticalRatio float64       `yaml:"vertical_ratio"`
	Concurrency   int           `yaml:"concurrency"`
	Timeout       time.Duration `yaml:"timeout"`
}

// Grouping thresholds are in native capture pixels
type Grouping struct {
	MaxDX int `yaml:"max_dx"`
	MaxDY int `yaml:"max_dy"`
}

type Ordering struct {
	Policy string `yaml:"policy"`
}

type Translator struct {
	Provider    string        `yaml:"provider"`
	Source      string        `yaml:"source"`
	Target      string        `yaml:"target"`
	Model       string        `yaml:"model"`
	URL         string        `yaml:"url"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Revalidate  bool          `yaml:"revalidate"`
}

type History struct {
	// DSN is a file path, redis:// URL or postgres:// URL
	DSN string `yaml:"dsn"`
}

type Overlay struct {
	Output     string  `yaml:"output"`
	FontPath   string  `yaml:"font_path"`
	BlurRadius float64 `yaml:"blur_radius"`
	FillAlpha  uint8   `yaml:"fill_alpha"`
	Radius     int     `yaml:"corner_radius"`
	FillColor  string  `yaml:"fill_color"`
	TextColor  string  `yaml:"text_color"`
	Outline    string  `yaml:"outline_color"`
	DebugBoxes bool    `yaml:"debug_boxes"`
}

type Control struct {
	Listen string `yaml:"listen"`
}

type Debug struct {
	Dir string `yaml:"dir"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Region: Region{Left: 575, Top: 128, Width: 768, Height: 864},
		Capture: Capture{
			Source:        "screen",
			UpscaleBelow:  1000,
			UpscaleFactor: 2,
			Binarize:      false,
		},
		Detector: Detector{
			Provider:      "heuristic",
			URL:           "http://localhost:8866",
			MinConfidence: 0.3,
			Timeout:       30 * time.Second,
		},
		OCR: OCR{
			Provider:      "tesseract",
			Language:      "jpn+jpn_vert",
			URL:           "http://localhost:1224",
			MinLineScore:  0.5,
			VerticalRatio: 1.2,
			Concurrency:   4,
			Timeout:       30 * time.Second,
		},
		Grouping: Grouping{MaxDX: 30, MaxDY: 20},
		Ordering: Ordering{Policy: "rtl"},
		Translator: Translator{
			Provider:    "google",
			Source:      "ja",
			Target:      "en",
			Model:       "gpt-4o-mini",
			Temperature: 0,
			Timeout:     30 * time.Second,
		},
		History: History{DSN: "translations.jsonl"},
		Overlay: Overlay{
			Output:     "overlay.png",
			BlurRadius: 5,
			FillAlpha:  180,
			Radius:     10,
			FillColor:  "#ffffff",
			TextColor:  "#ffffff",
			Outline:    "#000000",
		},
		Control: Control{Listen: "localhost:8888"},
	}
}

// Load builds the configuration. A missing file at path is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Region.Left = getEnvAsIntOrDefault("JPEN_REGION_LEFT", c.Region.Left)
	c.Region.Top = getEnvAsIntOrDefault("JPEN_REGION_TOP", c.Region.Top)
	c.Region.Width = getEnvAsIntOrDefault("JPEN_REGION_WIDTH", c.Region.Width)
	c.Region.Height = getEnvAsIntOrDefault("JPEN_REGION_HEIGHT", c.Region.Height)
	c.Detector.Provider = getEnvOrDefault("JPEN_DETECTOR", c.Detector.Provider)
	c.Detector.URL = getEnvOrDefault("JPEN_DETECTOR_URL", c.Detector.URL)
	c.OCR.Provider = getEnvOrDefault("JPEN_OCR", c.OCR.Provider)
	c.OCR.URL = getEnvOrDefault("JPEN_OCR_URL", c.OCR.URL)
	c.OCR.Language = getEnvOrDefault("JPEN_OCR_LANGUAGE", c.OCR.Language)
	c.OCR.Concurrency = getEnvAsIntOrDefault("JPEN_OCR_CONCURRENCY", c.OCR.Concurrency)
	c.Ordering.Policy = getEnvOrDefault("JPEN_ORDERING", c.Ordering.Policy)
	c.Translator.Provider = getEnvOrDefault("JPEN_TRANSLATOR", c.Translator.Provider)
	c.Translator.Model = getEnvOrDefault("JPEN_TRANSLATOR_MODEL", c.Translator.Model)
	c.Translator.Source = getEnvOrDefault("JPEN_SOURCE_LANG", c.Translator.Source)
	c.Translator.Target = getEnvOrDefault("JPEN_TARGET_LANG", c.Translator.Target)
	c.History.DSN = getEnvOrDefault("JPEN_HISTORY_DSN", c.History.DSN)
	c.Overlay.Output = getEnvOrDefault("JPEN_OVERLAY_OUTPUT", c.Overlay.Output)
	c.Overlay.FontPath = getEnvOrDefault("JPEN_FONT", c.Overlay.FontPath)
	c.Control.Listen = getEnvOrDefault("JPEN_LISTEN", c.Control.Listen)
	c.Debug.Dir = getEnvOrDefault("JPEN_DEBUG_DIR", c.Debug.Dir)
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.Region.Width <= 0 || c.Region.Height <= 0 {
		return fmt.Errorf("region must have positive size, got %dx%d", c.Region.Width, c.Region.Height)
	}
	if c.Region.Left < 0 || c.Region.Top < 0 {
		return fmt.Errorf("region origin must be non-negative, got (%d,%d)", c.Region.Left, c.Region.Top)
	}
	switch c.Capture.Source {
	case "screen":
	case "file":
		if c.Capture.Image == "" {
			return fmt.Errorf("capture.image is required when capture.source is file")
		}
	default:
		return fmt.Errorf("capture.source must be screen or file, got %q", c.Capture.Source)
	}
	if c.Capture.UpscaleFactor < 1 {
		return fmt.Errorf("capture.upscale_factor must be at least 1, got %v", c.Capture.UpscaleFactor)
	}
	if c.Detector.MinConfidence < 0 || c.Detector.MinConfidence > 1 {
		return fmt.Errorf("detector.min_confidence must be between 0 and 1, got %v", c.Detector.MinConfidence)
	}
	if c.OCR.MinLineScore < 0 || c.OCR.MinLineScore > 1 {
		return fmt.Errorf("ocr.min_line_score must be between 0 and 1, got %v", c.OCR.MinLineScore)
	}
	if c.OCR.VerticalRatio <= 0 {
		return fmt.Errorf("ocr.vertical_ratio must be positive, got %v", c.OCR.VerticalRatio)
	}
	if c.OCR.Concurrency < 1 || c.OCR.Concurrency > 64 {
		return fmt.Errorf("ocr.concurrency must be between 1 and 64, got %d", c.OCR.Concurrency)
	}
	if c.Grouping.MaxDX < 0 || c.Grouping.MaxDY < 0 {
		return fmt.Errorf("grouping thresholds must be non-negative")
	}
	switch strings.ToLower(c.Ordering.Policy) {
	case "rtl", "ltr":
	default:
		return fmt.Errorf("ordering.policy must be rtl or ltr, got %q", c.Ordering.Policy)
	}
	if c.Translator.Source == "" || c.Translator.Target == "" {
		return fmt.Errorf("translator source and target languages are required")
	}
	if c.History.DSN == "" {
		return fmt.Errorf("history.dsn is required")
	}
	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
