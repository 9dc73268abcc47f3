// Package google translates through the public Google Translate web endpoint.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/internal/utils"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
	"golang.org/x/sync/errgroup"
)

const defaultBaseURL = "https://translate.googleapis.com"

// Provider implements providers.Translator. The endpoint takes one text per
// request, so a batch fans out to at most Parallel concurrent requests.
type Provider struct {
	BaseURL  string
	Source   string
	Target   string
	Parallel int
	client   *http.Client
}

// New creates a Google translator from source to target language
func New(source, target string, timeout time.Duration) *Provider {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Provider{
		BaseURL:  defaultBaseURL,
		Source:   source,
		Target:   target,
		Parallel: 4,
		client:   &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string {
	return "google"
}

// TranslateBatch translates every text independently. A failed text yields
// "" without failing the others; an error is returned only when every text
// failed.
func (p *Provider) TranslateBatch(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))
	errs := make([]error, len(texts))

	var g errgroup.Group
	g.SetLimit(max(1, p.Parallel))
	for i, text := range texts {
		g.Go(func() error {
			out[i], errs[i] = p.translate(ctx, text)
			if errs[i] != nil {
				slog.Error("Google translate error", "text", text, "err", utils.MaskSensitiveError(errs[i]))
			} else {
				slog.Debug("Translated", "source", text, "translation", out[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if len(texts) > 0 && failed == len(texts) {
		return out, fmt.Errorf("all %d translations failed: %w", failed, errs[0])
	}
	return out, nil
}

func (p *Provider) translate(ctx context.Context, text string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", p.Source)
	q.Set("tl", p.Target)
	q.Set("dt", "t")
	q.Set("q", text)

	endpoint := fmt.Sprintf("%s/translate_a/single?%s", strings.TrimSuffix(p.BaseURL, "/"), q.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("google translate error: %d - %s", resp.StatusCode, providers.TruncateBody(body))
	}

	return parseResponse(body)
}

// parseResponse joins the translated segments of a gtx response:
// [[["cat","猫",null,null,10], ...], null, "ja", ...]
func parseResponse(body []byte) (string, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || len(raw) == 0 {
		return "", fmt.Errorf("failed to parse JSON response: %v - body: %s", err, providers.TruncateBody(body))
	}

	var segments [][]any
	if err := json.Unmarshal(raw[0], &segments); err != nil {
		return "", fmt.Errorf("unexpected segment format: %w - body: %s", err, providers.TruncateBody(body))
	}

	var sb strings.Builder
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		if s, ok := seg[0].(string); ok {
			sb.WriteString(s)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
