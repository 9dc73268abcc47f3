package providers

import (
	"context"
	"image"
	"regexp"
	"strings"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
)

// Config represents the configuration shared by adapters
type Config struct {
	Provider       string
	Model          string
	URL            string
	Language       string
	SourceLanguage string
	TargetLanguage string
	Temperature    float64
	Timeout        time.Duration
}

// Named is implemented by every adapter kind so it can live in a Registry
type Named interface {
	Name() string
}

// Detection is one candidate bubble returned by a Detector, in the
// coordinates of the image passed to Detect
type Detection struct {
	Box        overlay.Box
	Confidence float64
}

// Detector finds candidate text regions in a frame
type Detector interface {
	Named
	Detect(ctx context.Context, img image.Image) ([]Detection, error)
}

// Recognizer runs OCR on one region crop. Returned polygons are crop-local.
type Recognizer interface {
	Named
	Recognize(ctx context.Context, crop image.Image) ([]overlay.RawLine, error)
}

// Translator translates texts in one call. Implementations must return a
// slice the same length as texts; an entry that failed is "".
type Translator interface {
	Named
	TranslateBatch(ctx context.Context, texts []string) ([]string, error)
}

// ConfigValidator is an optional interface for adapters that need
// environment or configuration checks before the first cycle
type ConfigValidator interface {
	ValidateConfig(config Config) error
}

// Validate calls ValidateConfig when the adapter implements it
func Validate(adapter Named, config Config) error {
	if v, ok := adapter.(ConfigValidator); ok {
		return v.ValidateConfig(config)
	}
	return nil
}

// CleanResponse strips the chatter language models wrap around an answer
func CleanResponse(response string) string {
	response = strings.TrimSpace(response)

	prefixPatterns := []string{
		`(?i)^here'?s?\s+((is|are)\s+)?(the\s+)?translations?:?\s*`,
		`(?i)^(the\s+)?translations?\s+(is|are):?\s*`,
		`(?i)^certainly!\s*`,
		`(?i)^sure!\s*`,
	}

	for _, pattern := range prefixPatterns {
		re := regexp.MustCompile(pattern)
		response = re.ReplaceAllString(response, "")
		response = strings.TrimSpace(response)
	}

	if strings.HasPrefix(response, "```") && strings.HasSuffix(response, "```") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	}

	return response
}

// TruncateBody truncates a response body to a maximum length for error messages.
// Default maxLen is 500 if not specified.
func TruncateBody(body []byte, maxLen ...int) string {
	limit := 500
	if len(maxLen) > 0 && maxLen[0] > 0 {
		limit = maxLen[0]
	}
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}
