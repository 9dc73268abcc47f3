package ollama

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

// Provider implements providers.Translator with a local Ollama model
type Provider struct {
	config providers.Config
}

// New creates a new Ollama translator
func New(config providers.Config) *Provider {
	if config.Model == "" || strings.HasPrefix(config.Model, "gpt-") {
		config.Model = "qwen2.5:7b"
	}
	if config.Timeout == 0 {
		config.Timeout = 300 * time.Second // local inference is slow
	}
	return &Provider{config: config}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "ollama"
}

// ValidateConfig validates the Ollama configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	// We could ping the API here, but for now just validate the URL format
	return nil
}

func (p *Provider) url() string {
	if p.config.URL != "" {
		return p.config.URL
	}
	if u := os.Getenv("OLLAMA_URL"); u != "" {
		return u
	}
	return "http://localhost:11434"
}

// TranslateBatch asks the model for a JSON array with one translation per text
func (p *Provider) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	textsJSON, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal texts: %w", err)
	}

	requestBody := map[string]any{
		"model":  p.config.Model,
		"system": openai.Prompt(p.config.SourceLanguage, p.config.TargetLanguage),
		"prompt": string(textsJSON),
		"format": "json",
		"stream": false,
		"options": map[string]any{
			"temperature": p.config.Temperature,
		},
	}

	requestJSON, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", strings.TrimSuffix(p.url(), "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestJSON))
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: p.config.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var ollamaResp map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&ollamaResp); err != nil {
		return nil, err
	}

	response, ok := ollamaResp["response"].(string)
	if !ok {
		return nil, fmt.Errorf("no response from Ollama")
	}

	return openai.ParseTranslations(unwrapObject(response), len(texts))
}

// unwrapObject handles models that, forced into JSON mode, answer with an
// object holding the array (e.g. {"translations": [...]}) instead of the array
func unwrapObject(response string) string {
	response = strings.TrimSpace(response)
	if !strings.HasPrefix(response, "{") {
		return response
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(response), &obj); err != nil {
		return response
	}
	for _, v := range obj {
		if trimmed := bytes.TrimSpace(v); len(trimmed) > 0 && trimmed[0] == '[' {
			return string(trimmed)
		}
	}
	return response
}
