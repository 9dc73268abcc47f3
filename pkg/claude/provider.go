package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/openai"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com/v1"
	defaultModel   = "claude-3-5-haiku-latest"
)

// Provider implements providers.Translator with the Anthropic messages API
type Provider struct {
	config  providers.Config
	baseURL string
}

// Response represents an Anthropic API response
type Response struct {
	Content []struct {
		Text string `json:"text"`
		Type string `json:"type"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// New creates a new Claude translator. Models named for another vendor fall
// back to the default Claude model.
func New(config providers.Config) *Provider {
	if config.Model == "" || !strings.HasPrefix(config.Model, "claude") {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 120 * time.Second
	}
	baseURL := os.Getenv("ANTHROPIC_BASE_URL")
	if config.URL != "" {
		baseURL = config.URL
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{config: config, baseURL: baseURL}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "claude"
}

// ValidateConfig validates the Claude configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}
	return nil
}

// TranslateBatch sends the texts as one JSON array message
func (p *Provider) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable not set")
	}

	textsJSON, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal texts: %w", err)
	}

	requestBody := map[string]any{
		"model":      p.config.Model,
		"max_tokens": 4096,
		"system":     openai.Prompt(p.config.SourceLanguage, p.config.TargetLanguage),
		"messages": []map[string]any{
			{
				"role":    "user",
				"content": string(textsJSON),
			},
		},
	}
	if p.config.Temperature > 0 {
		requestBody["temperature"] = p.config.Temperature
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(p.baseURL, "/") + "/messages"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestJSON))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	client := &http.Client{Timeout: p.config.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("claude API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var claudeResp Response
	if err := json.NewDecoder(resp.Body).Decode(&claudeResp); err != nil {
		return nil, err
	}

	var reply string
	for _, content := range claudeResp.Content {
		if content.Type == "text" {
			reply = content.Text
			break
		}
	}
	if reply == "" {
		return nil, fmt.Errorf("no text content in Claude response")
	}

	return openai.ParseTranslations(reply, len(texts))
}
