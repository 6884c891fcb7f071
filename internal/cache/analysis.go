package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/onionqc/internal/quality"
)

// KeyPrefix namespaces analysis entries in a shared store.
const KeyPrefix = "onionqc:analysis:"

// AnalysisKey identifies an analysis by model identity, image content and
// month. The seasonal shelf-life adjustment depends on the month.
func AnalysisKey(model string, image []byte, month time.Month) string {
	modelSum := sha256.Sum256([]byte(model))
	imageSum := sha256.Sum256(image)
	return fmt.Sprintf("%s%s:%s:%02d", KeyPrefix,
		hex.EncodeToString(modelSum[:8]), hex.EncodeToString(imageSum[:]), int(month))
}

// AnalysisCache stores analysis records in a Cache. Cache failures are
// logged and treated as misses.
type AnalysisCache struct {
	store  Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewAnalysisCache wraps store. A nil logger uses slog.Default.
func NewAnalysisCache(store Cache, ttl time.Duration, logger *slog.Logger) *AnalysisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisCache{store: store, ttl: ttl, logger: logger}
}

// Lookup returns the record cached for an image under model, if any.
func (c *AnalysisCache) Lookup(ctx context.Context, model string, image []byte, month time.Month) (quality.OnionAnalysis, bool) {
	key := AnalysisKey(model, image, month)
	data, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache lookup failed", "error", err)
		return quality.OnionAnalysis{}, false
	}
	if !ok {
		return quality.OnionAnalysis{}, false
	}

	var a quality.OnionAnalysis
	if err := json.Unmarshal(data, &a); err != nil {
		c.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		_ = c.store.Delete(ctx, key)
		return quality.OnionAnalysis{}, false
	}
	return a, true
}

// Store records the analysis of an image by model. Degraded records are
// never cached.
func (c *AnalysisCache) Store(ctx context.Context, model string, image []byte, month time.Month, a quality.OnionAnalysis) {
	if quality.IsFailed(a) {
		return
	}
	data, err := json.Marshal(a)
	if err != nil {
		c.logger.Warn("cache encode failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, AnalysisKey(model, image, month), data, c.ttl); err != nil {
		c.logger.Warn("cache store failed", "error", err)
	}
}

// Ping checks the underlying store.
func (c *AnalysisCache) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Close releases the underlying store.
func (c *AnalysisCache) Close() error {
	return c.store.Close()
}
