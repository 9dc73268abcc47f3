// Package cache fronts a Translator with the translation history so text
// already seen is never sent again.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/StreyKenD/AutoTranslationJPEN/pkg/history"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/overlay"
	"github.com/StreyKenD/AutoTranslationJPEN/pkg/providers"
)

// Options for New
type Options struct {
	// Revalidate sends every non-empty text to the translator even when a
	// stored translation exists
	Revalidate bool
}

// Cache is the single writer of the history store
type Cache struct {
	store      history.Store
	translator providers.Translator
	opts       Options

	mu    sync.RWMutex
	index map[string]string
}

// New loads the full history into memory
func New(ctx context.Context, store history.Store, translator providers.Translator, opts Options) (*Cache, error) {
	records, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load translation history: %w", err)
	}

	index := make(map[string]string, len(records))
	for _, rec := range records {
		key := strings.TrimSpace(rec.SourceText)
		if key == "" || strings.TrimSpace(rec.TranslatedText) == "" {
			continue
		}
		index[key] = rec.TranslatedText
	}

	slog.Info("Translation history loaded", "records", len(records), "entries", len(index))
	return &Cache{store: store, translator: translator, opts: opts, index: index}, nil
}

// Lookup returns the stored translation of text
func (c *Cache) Lookup(text string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.index[strings.TrimSpace(text)]
	return v, ok
}

// Len returns the number of distinct cached sources
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.index)
}

// Translate returns one translation per text, in order. Cached entries are
// reused and the remaining distinct texts go to the translator in a single
// batch. Translator failures yield "" for the affected entries and are only
// logged; the only error returned is CANCELLED.
func (c *Cache) Translate(ctx context.Context, texts []string) ([]string, error) {
	out := make([]string, len(texts))

	var misses []string
	slots := make(map[string][]int)
	hits := 0
	for i, text := range texts {
		key := strings.TrimSpace(text)
		if key == "" {
			continue
		}
		if !c.opts.Revalidate {
			if v, ok := c.Lookup(key); ok {
				out[i] = v
				hits++
				continue
			}
		}
		if _, seen := slots[key]; !seen {
			misses = append(misses, key)
		}
		slots[key] = append(slots[key], i)
	}

	slog.Debug("Translation cache lookup", "texts", len(texts), "hits", hits, "misses", len(misses))
	if len(misses) == 0 {
		return out, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, overlay.NewCancelledError("translate", err)
	}

	start := time.Now()
	results, err := c.translator.TranslateBatch(ctx, misses)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, overlay.NewCancelledError("translate", ctxErr)
	}
	if err != nil {
		slog.Error("Translation batch failed", "translator", c.translator.Name(), "texts", len(misses),
			"err", overlay.NewAdapterFailureError("translate", err))
		return out, nil
	}
	if len(results) != len(misses) {
		slog.Error("Translation batch returned wrong number of results", "translator", c.translator.Name(),
			"sent", len(misses), "received", len(results), "code", overlay.ErrorAdapterFailure)
		return out, nil
	}
	slog.Info("Translation batch complete", "translator", c.translator.Name(), "texts", len(misses), "duration", time.Since(start))

	for j, key := range misses {
		translated := results[j]
		for _, i := range slots[key] {
			out[i] = translated
		}
		if strings.TrimSpace(translated) == "" {
			continue
		}
		c.remember(ctx, key, translated)
	}
	return out, nil
}

func (c *Cache) remember(ctx context.Context, source, translated string) {
	c.mu.Lock()
	c.index[source] = translated
	c.mu.Unlock()

	rec := overlay.TranslationRecord{SourceText: source, TranslatedText: translated, CreatedAt: time.Now().UTC()}
	if err := c.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		slog.Warn("Failed to persist translation", "source", source, "err", err)
	}
}
