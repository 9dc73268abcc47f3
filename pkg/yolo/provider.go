// Package yolo talks to a speech-bubble YOLO model served over HTTP.
package yolo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/disintegration/imaging"
)

// Provider implements providers.Detector against a YOLO inference server
type Provider struct {
	URL        string
	Confidence float64
	IoU        float64
	client     *http.Client
}

// Request is the body posted to /detect
type Request struct {
	Image      string  `json:"image"`
	Confidence float64 `json:"conf"`
	IoU        float64 `json:"iou"`
}

// Response represents the inference server response
type Response struct {
	Boxes []struct {
		XYXY       [4]float64 `json:"xyxy"`
		Confidence float64    `json:"confidence"`
	} `json:"boxes"`
}

// New creates a YOLO detector. An empty url falls back to YOLO_URL.
func New(url string, confidence float64, timeout time.Duration) *Provider {
	if url == "" {
		url = os.Getenv("YOLO_URL")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{
		URL:        url,
		Confidence: confidence,
		IoU:        0.5,
		client:     &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string {
	return "yolo"
}

// ValidateConfig checks that an inference server is configured
func (p *Provider) ValidateConfig(config providers.Config) error {
	if p.URL == "" {
		return fmt.Errorf("YOLO_URL environment variable not set")
	}
	return nil
}

func (p *Provider) Detect(ctx context.Context, img image.Image) ([]providers.Detection, error) {
	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	requestJSON, err := json.Marshal(Request{
		Image:      base64.StdEncoding.EncodeToString(encoded.Bytes()),
		Confidence: p.Confidence,
		IoU:        p.IoU,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/detect", strings.TrimSuffix(p.URL, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestJSON))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yolo API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var yoloResp Response
	if err := json.Unmarshal(body, &yoloResp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, providers.TruncateBody(body))
	}

	detections := make([]providers.Detection, 0, len(yoloResp.Boxes))
	for _, b := range yoloResp.Boxes {
		detections = append(detections, providers.Detection{
			Box: overlay.Box{
				X1: int(math.Floor(b.XYXY[0])),
				Y1: int(math.Floor(b.XYXY[1])),
				X2: int(math.Ceil(b.XYXY[2])),
				Y2: int(math.Ceil(b.XYXY[3])),
			},
			Confidence: b.Confidence,
		})
	}
	return detections, nil
}
