package ollama

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResponseCache stores model responses on disk, keyed by a fingerprint of
// the full request. Entries older than the TTL are treated as misses.
type ResponseCache struct {
	dir    string
	ttl    time.Duration
	logger *zap.Logger
}

type cacheEntry struct {
	Timestamp int64  `json:"timestamp"`
	Response  string `json:"response"`
}

func NewResponseCache(dir string, ttl time.Duration, logger *zap.Logger) (*ResponseCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &ResponseCache{dir: dir, ttl: ttl, logger: logger}, nil
}

// Fingerprint derives the cache key from every request field that affects
// the model's output.
func Fingerprint(model, prompt, system string, temperature float64, maxTokens int, schema interface{}) string {
	schemaJSON := ""
	if schema != nil {
		if raw, err := json.Marshal(schema); err == nil {
			schemaJSON = string(raw)
		}
	}
	payload := fmt.Sprintf("%s|%s|%s|%.4f|%d|%s", model, prompt, system, temperature, maxTokens, schemaJSON)
	return fmt.Sprintf("%x", sha256.Sum256([]byte(payload)))
}

func (c *ResponseCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

// Get returns the cached response for the key, or ok=false on a miss.
// Expired and unreadable entries count as misses.
func (c *ResponseCache) Get(key string) (string, bool) {
	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return "", false
	}

	var entry cacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.logger.Warn("Dropping corrupt cache entry", zap.String("key", key), zap.Error(err))
		os.Remove(c.path(key))
		return "", false
	}

	age := time.Since(time.Unix(entry.Timestamp, 0))
	if age > c.ttl {
		c.logger.Debug("Cache entry expired", zap.String("key", key), zap.Duration("age", age))
		return "", false
	}

	return entry.Response, true
}

// Put writes the entry atomically so a crash mid-write never leaves a
// half-written file behind.
func (c *ResponseCache) Put(key, response string) error {
	entry := cacheEntry{
		Timestamp: time.Now().Unix(),
		Response:  response,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}

	tmp := filepath.Join(c.dir, uuid.NewString()+".tmp")
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit cache entry: %w", err)
	}
	return nil
}

// Clear removes every cached entry and reports how many were deleted.
func (c *ResponseCache) Clear() (int, error) {
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list cache entries: %w", err)
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err == nil {
			removed++
		}
	}
	return removed, nil
}
