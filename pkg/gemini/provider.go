package gemini

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

	"github.com/StreyKenD/AutoTranslationJPEN/internal/utils"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/openai"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-1.5-flash"
)

// Provider implements providers.Translator with the Gemini generateContent API
type Provider struct {
	config  providers.Config
	baseURL string
}

// New creates a new Gemini translator
func New(config providers.Config) *Provider {
	if config.Model == "" || !strings.HasPrefix(config.Model, "gemini") {
		config.Model = defaultModel
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	baseURL := defaultBaseURL
	if config.URL != "" {
		baseURL = config.URL
	}
	return &Provider{config: config, baseURL: baseURL}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "gemini"
}

// ValidateConfig validates the Gemini configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}
	return nil
}

// TranslateBatch asks for a JSON array reply with one entry per text
func (p *Provider) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
	}

	textsJSON, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal texts: %w", err)
	}

	requestBody := map[string]interface{}{
		"systemInstruction": map[string]interface{}{
			"parts": []map[string]interface{}{
				{"text": openai.Prompt(p.config.SourceLanguage, p.config.TargetLanguage)},
			},
		},
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{"text": string(textsJSON)},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      p.config.Temperature,
			"responseMimeType": "application/json",
		},
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", strings.TrimSuffix(p.baseURL, "/"), p.config.Model, apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestJSON))
	if err != nil {
		return nil, utils.MaskSensitiveError(err)
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: p.config.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		// The request URL carries the key.
		return nil, utils.MaskSensitiveError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var geminiResp map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&geminiResp); err != nil {
		return nil, err
	}

	text, err := replyText(geminiResp)
	if err != nil {
		return nil, err
	}
	return openai.ParseTranslations(text, len(texts))
}

// replyText digs the first text part out of a generateContent response
func replyText(geminiResp map[string]interface{}) (string, error) {
	candidates, ok := geminiResp["candidates"].([]interface{})
	if !ok || len(candidates) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	candidate, ok := candidates[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid response format from Gemini")
	}

	content, ok := candidate["content"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid content format from Gemini")
	}

	parts, ok := content["parts"].([]interface{})
	if !ok || len(parts) == 0 {
		return "", fmt.Errorf("no parts in Gemini response")
	}

	part, ok := parts[0].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("invalid part format from Gemini")
	}

	text, ok := part["text"].(string)
	if !ok {
		return "", fmt.Errorf("no text in Gemini response")
	}
	return text, nil
}
