package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Provider implements providers.Translator with the OpenAI chat API
type Provider struct {
	config  providers.Config
	baseURL string
}

// Response represents an OpenAI API response
type Response struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// TemplateData represents data for API request template
type TemplateData struct {
	Model       string
	Prompt      string
	Temperature float64
	Texts       string
}

// New creates a new OpenAI translator. OPENAI_BASE_URL overrides the API root.
func New(config providers.Config) *Provider {
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
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
	return "openai"
}

// ValidateConfig validates the OpenAI configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}
	return nil
}

// TranslateBatch sends all texts in one chat completion and expects a JSON
// array of the same length back
func (p *Provider) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	textsJSON, err := json.Marshal(texts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal texts: %w", err)
	}

	templateData := TemplateData{
		Model:       jsonEscape(p.config.Model),
		Prompt:      jsonEscape(Prompt(p.config.SourceLanguage, p.config.TargetLanguage)),
		Temperature: p.config.Temperature,
		Texts:       jsonEscape(string(textsJSON)),
	}

	tmpl, err := template.New("openai").Parse(getDefaultTemplate())
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}

	var requestBuffer bytes.Buffer
	if err := tmpl.Execute(&requestBuffer, templateData); err != nil {
		return nil, fmt.Errorf("failed to execute template: %w", err)
	}

	var jsonTest any
	if err := json.Unmarshal(requestBuffer.Bytes(), &jsonTest); err != nil {
		return nil, fmt.Errorf("generated invalid JSON: %w\nJSON: %s", err, requestBuffer.String())
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimSuffix(p.baseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, "POST", url, &requestBuffer)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	client := &http.Client{Timeout: p.config.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openAI API error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	var openaiResp Response
	if err := json.Unmarshal(body, &openaiResp); err != nil {
		return nil, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, providers.TruncateBody(body))
	}

	if len(openaiResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI - body: %s", providers.TruncateBody(body))
	}

	return ParseTranslations(openaiResp.Choices[0].Message.Content, len(texts))
}

// Prompt is the instruction shared by the chat-model translators
func Prompt(source, target string) string {
	if source == "" {
		source = "ja"
	}
	if target == "" {
		target = "en"
	}
	return fmt.Sprintf("Translate each string in the JSON array from %s to %s. "+
		"These are speech bubbles from a comic, in reading order. "+
		"Reply with only a JSON array of strings with exactly the same number of elements, in the same order.",
		source, target)
}

// ParseTranslations decodes a model reply into exactly want strings
func ParseTranslations(content string, want int) ([]string, error) {
	cleaned := providers.CleanResponse(content)
	var out []string
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, fmt.Errorf("model reply is not a JSON array of strings: %w - reply: %s", err, providers.TruncateBody([]byte(content), 200))
	}
	if len(out) != want {
		return nil, fmt.Errorf("model returned %d translations for %d texts", len(out), want)
	}
	for i := range out {
		out[i] = strings.TrimSpace(out[i])
	}
	return out, nil
}

// jsonEscape properly escapes a string for use in JSON
func jsonEscape(s string) string {
	escaped, _ := json.Marshal(s)
	return string(escaped[1 : len(escaped)-1])
}

// getDefaultTemplate returns the default OpenAI API template
func getDefaultTemplate() string {
	return `{
  "model": "{{.Model}}",
  "temperature": {{.Temperature}},
  "messages": [
    {
      "role": "system",
      "content": "{{.Prompt}}"
    },
    {
      "role": "user",
      "content": "{{.Texts}}"
    }
  ]
}`
}
