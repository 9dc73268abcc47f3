package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"github.com/disintegration/imaging"
	"gonum.org/v1/gonum/stat"
)

// Provider implements providers.Recognizer with the Azure Computer Vision
// Read API
type Provider struct {
	// Endpoint overrides AZURE_OCR_ENDPOINT
	Endpoint     string
	Language     string
	PollInterval time.Duration
	MaxPolls     int
	client       *http.Client
}

// readResult is the v3.2 analyzeResults payload
type readResult struct {
	Status        string `json:"status"`
	AnalyzeResult struct {
		ReadResults []struct {
			Lines []struct {
				Text        string    `json:"text"`
				BoundingBox []float64 `json:"boundingBox"`
				Words       []struct {
					Confidence float64 `json:"confidence"`
				} `json:"words"`
			} `json:"lines"`
		} `json:"readResults"`
	} `json:"analyzeResult"`
}

// New creates a new Azure recognizer. language is a Tesseract-style list such
// as "jpn+jpn_vert"; the first entry picks the Read API language.
func New(language string, timeout time.Duration) *Provider {
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Provider{
		Language:     languageCode(language),
		PollInterval: time.Second,
		MaxPolls:     30,
		client:       &http.Client{Timeout: timeout},
	}
}

func languageCode(language string) string {
	first, _, _ := strings.Cut(language, "+")
	switch strings.TrimSuffix(first, "_vert") {
	case "jpn", "":
		return "ja"
	case "eng":
		return "en"
	case "chi_sim":
		return "zh-Hans"
	case "kor":
		return "ko"
	default:
		return first
	}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "azure"
}

func (p *Provider) endpoint() string {
	if p.Endpoint != "" {
		return p.Endpoint
	}
	return os.Getenv("AZURE_OCR_ENDPOINT")
}

// ValidateConfig validates the Azure configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	if p.endpoint() == "" || os.Getenv("AZURE_OCR_API_KEY") == "" {
		return fmt.Errorf("AZURE_OCR_ENDPOINT and AZURE_OCR_API_KEY environment variables must be set")
	}
	return nil
}

// Recognize submits the crop and polls the operation until the lines are ready
func (p *Provider) Recognize(ctx context.Context, crop image.Image) ([]overlay.RawLine, error) {
	endpoint := p.endpoint()
	apiKey := os.Getenv("AZURE_OCR_API_KEY")
	if endpoint == "" || apiKey == "" {
		return nil, fmt.Errorf("AZURE_OCR_ENDPOINT and AZURE_OCR_API_KEY environment variables must be set")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, crop, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}

	readURL := fmt.Sprintf("%s/vision/v3.2/read/analyze?language=%s",
		strings.TrimSuffix(endpoint, "/"), url.QueryEscape(p.Language))

	req, err := http.NewRequestWithContext(ctx, "POST", readURL, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("azure OCR API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return nil, fmt.Errorf("no operation location returned from Azure OCR")
	}

	for attempts := 0; attempts < p.MaxPolls; attempts++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.PollInterval):
		}

		result, err := p.poll(ctx, operationURL, apiKey)
		if err != nil {
			return nil, err
		}
		if result == nil {
			continue
		}

		switch result.Status {
		case "succeeded":
			return rawLines(result), nil
		case "failed":
			return nil, fmt.Errorf("azure OCR analysis failed")
		}
		// Continue polling if status is "running" or "notStarted"
	}

	return nil, fmt.Errorf("azure OCR operation timed out after %d polls", p.MaxPolls)
}

// poll returns nil without error when the operation is not readable yet
func (p *Provider) poll(ctx context.Context, operationURL, apiKey string) (*readResult, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", operationURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	var result readResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("invalid response format from Azure OCR: %w", err)
	}
	return &result, nil
}

// rawLines converts Read API lines. The line score is the mean word
// confidence; lines without words score 1.
func rawLines(result *readResult) []overlay.RawLine {
	var lines []overlay.RawLine
	for _, page := range result.AnalyzeResult.ReadResults {
		for _, line := range page.Lines {
			if len(line.BoundingBox) < 8 {
				continue
			}
			var poly [4]overlay.Point
			for i := range poly {
				poly[i] = overlay.Point{X: int(math.Round(line.BoundingBox[2*i])), Y: int(math.Round(line.BoundingBox[2*i+1]))}
			}

			score := 1.0
			if len(line.Words) > 0 {
				confidences := make([]float64, len(line.Words))
				for i, w := range line.Words {
					confidences[i] = w.Confidence
				}
				score = stat.Mean(confidences, nil)
			}

			lines = append(lines, overlay.RawLine{Text: line.Text, Poly: poly, Score: score})
		}
	}
	return lines
}
