// Package paddle recognizes text through a PaddleOCR HTTP service.
package paddle

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/disintegration/imaging"
)

const (
	codeSuccess = 100
	codeNoText  = 101
)

// Provider implements providers.Recognizer
type Provider struct {
	URL    string
	client *http.Client
}

// Response represents the OCR service response
type Response struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

// Line is one recognized text line. Box lists four [x, y] corners clockwise.
type Line struct {
	Text  string       `json:"text"`
	Box   [][2]float64 `json:"box"`
	Score float64      `json:"score"`
}

// New creates a PaddleOCR recognizer. An empty url falls back to PADDLE_OCR_URL.
func New(url string, timeout time.Duration) *Provider {
	if url == "" {
		url = os.Getenv("PADDLE_OCR_URL")
	}
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Provider{URL: url, client: &http.Client{Timeout: timeout}}
}

func (p *Provider) Name() string {
	return "paddle"
}

func (p *Provider) ValidateConfig(config providers.Config) error {
	if p.URL == "" {
		return fmt.Errorf("PADDLE_OCR_URL environment variable not set")
	}
	return nil
}

func (p *Provider) Recognize(ctx context.Context, crop image.Image) ([]overlay.RawLine, error) {
	var encoded bytes.Buffer
	if err := imaging.Encode(&encoded, crop, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	jsonData, err := json.Marshal(map[string]any{
		"base64": base64.StdEncoding.EncodeToString(encoded.Bytes()),
		"options": map[string]any{
			"data.format": "dict",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/ocr", strings.TrimSuffix(p.URL, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
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
		return nil, fmt.Errorf("paddle OCR API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var ocrResp Response
	if err := json.Unmarshal(body, &ocrResp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, providers.TruncateBody(body))
	}

	switch ocrResp.Code {
	case codeSuccess:
	case codeNoText:
		return nil, nil
	default:
		return nil, fmt.Errorf("paddle OCR failed, code: %d - body: %s", ocrResp.Code, providers.TruncateBody(body))
	}

	var data []Line
	if err := json.Unmarshal(ocrResp.Data, &data); err != nil {
		return nil, fmt.Errorf("unexpected OCR data format: %w", err)
	}

	lines := make([]overlay.RawLine, 0, len(data))
	for _, d := range data {
		if len(d.Box) < 4 {
			continue
		}
		var poly [4]overlay.Point
		for i := range poly {
			poly[i] = overlay.Point{X: int(d.Box[i][0] + 0.5), Y: int(d.Box[i][1] + 0.5)}
		}
		lines = append(lines, overlay.RawLine{Text: d.Text, Poly: poly, Score: d.Score})
	}
	return lines, nil
}
