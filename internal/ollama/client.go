package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to a local Ollama service over its HTTP API.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	cache      *ResponseCache
	retry      RetryPolicy
	logger     *zap.Logger
}

// NewClient creates an Ollama client. cache may be nil to disable the
// response cache.
func NewClient(baseURL, model string, timeout time.Duration, cache *ResponseCache, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		cache:  cache,
		retry:  DefaultRetryPolicy(),
		logger: logger,
	}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// GenerateRequest is a free-text completion request. Zero values fall back
// to the defaults used throughout the generation pipeline.
type GenerateRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
	TopP        float64
}

// StructuredRequest asks the model for JSON conforming to a schema. The
// schema is sent alongside the prompt so the model knows the shape, and the
// reply is validated as parseable JSON before being returned.
type StructuredRequest struct {
	Prompt      string
	System      string
	Temperature float64
	MaxTokens   int
	Schema      map[string]interface{}
}

const (
	defaultMaxTokens = 2000
	defaultTopP      = 0.9
)

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopP        float64 `json:"top_p"`
}

type generatePayload struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	System  string          `json:"system,omitempty"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatPayload struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Format   string          `json:"format,omitempty"`
	Stream   bool            `json:"stream"`
	Options  generateOptions `json:"options"`
}

// Ping verifies the service is reachable. It uses a short deadline
// independent of the generation timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ConnectionError{BaseURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return &ResponseError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// ListModels returns the names of the models the service has available.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ConnectionError{BaseURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &ResponseError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tags struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.Unmarshal(body, &tags); err != nil {
		return nil, fmt.Errorf("failed to parse model list: %w", err)
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Generate runs a free-text completion against /api/generate.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.TopP <= 0 {
		req.TopP = defaultTopP
	}

	key := ""
	if c.cache != nil {
		key = Fingerprint(c.model, req.Prompt, req.System, req.Temperature, req.MaxTokens, nil)
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug("Cache hit", zap.String("key", key))
			return cached, nil
		}
	}

	payload := generatePayload{
		Model:  c.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: false,
		Options: generateOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
			TopP:        req.TopP,
		},
	}

	body, err := c.post(ctx, "/api/generate", payload)
	if err != nil {
		return "", err
	}

	text, err := assembleResponse(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse generate response: %w", err)
	}

	if c.cache != nil {
		if err := c.cache.Put(key, text); err != nil {
			c.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}
	return text, nil
}

// StructuredGenerate asks for schema-shaped JSON via /api/chat. Malformed
// replies are retried with progressively lower temperature; connection
// failures abort immediately.
func (c *Client) StructuredGenerate(ctx context.Context, req StructuredRequest) (json.RawMessage, error) {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}

	key := ""
	if c.cache != nil {
		key = Fingerprint(c.model, req.Prompt, req.System, req.Temperature, req.MaxTokens, req.Schema)
		if cached, ok := c.cache.Get(key); ok {
			c.logger.Debug("Cache hit", zap.String("key", key))
			return json.RawMessage(cached), nil
		}
	}

	prompt := req.Prompt
	if req.Schema != nil {
		schemaJSON, err := json.MarshalIndent(req.Schema, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema: %w", err)
		}
		prompt = fmt.Sprintf("%s\n\nRespond with JSON matching this schema:\n%s", req.Prompt, schemaJSON)
	}

	attempts := c.retry.MaxRetries + 1
	var lastRaw string
	var lastErr error

	for attempt := 0; attempt < attempts; attempt++ {
		temp := c.retry.TemperatureAt(attempt, req.Temperature)
		if attempt > 0 {
			c.logger.Info("Retrying structured generation",
				zap.Int("attempt", attempt+1),
				zap.Float64("temperature", temp),
			)
		}

		messages := []chatMessage{}
		if req.System != "" {
			messages = append(messages, chatMessage{Role: "system", Content: req.System})
		}
		messages = append(messages, chatMessage{Role: "user", Content: prompt})

		payload := chatPayload{
			Model:    c.model,
			Messages: messages,
			Format:   "json",
			Stream:   false,
			Options: generateOptions{
				Temperature: temp,
				NumPredict:  req.MaxTokens,
				TopP:        defaultTopP,
			},
		}

		body, err := c.post(ctx, "/api/chat", payload)
		if err != nil {
			if _, ok := err.(*ConnectionError); ok {
				return nil, err
			}
			lastErr = err
			continue
		}

		text, err := assembleResponse(body)
		if err != nil {
			lastErr = err
			lastRaw = string(body)
			continue
		}
		lastRaw = text

		extracted, err := extractJSON(text)
		if err != nil {
			lastErr = err
			continue
		}

		if c.cache != nil {
			if err := c.cache.Put(key, string(extracted)); err != nil {
				c.logger.Warn("Failed to cache response", zap.Error(err))
			}
		}
		return extracted, nil
	}

	return nil, &MalformedResponseError{Attempts: attempts, Raw: lastRaw, Err: lastErr}
}

func (c *Client) post(ctx context.Context, path string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.Error("Ollama request failed",
			zap.String("path", path),
			zap.Error(err),
			zap.Duration("duration", duration),
		)
		return nil, &ConnectionError{BaseURL: c.baseURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("Ollama returned error",
			zap.String("path", path),
			zap.Int("status_code", resp.StatusCode),
		)
		return nil, &ResponseError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	c.logger.Debug("Ollama request completed",
		zap.String("path", path),
		zap.Duration("duration", duration),
	)
	return body, nil
}

// assembleResponse extracts the model's text from a response body. Even with
// stream=false some servers reply with newline-delimited fragments, so the
// body is reassembled line by line: "response" fields come from /api/generate,
// "message.content" fields from /api/chat, and whichever kind dominates wins.
func assembleResponse(body []byte) (string, error) {
	type fragment struct {
		Response string `json:"response"`
		Message  struct {
			Content string `json:"content"`
		} `json:"message"`
		Error string `json:"error"`
	}

	var generateParts, chatParts []string
	decoded := false

	for _, line := range bytes.Split(body, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var frag fragment
		if err := json.Unmarshal(line, &frag); err != nil {
			continue
		}
		decoded = true
		if frag.Error != "" {
			return "", fmt.Errorf("ollama error: %s", frag.Error)
		}
		if frag.Response != "" {
			generateParts = append(generateParts, frag.Response)
		}
		if frag.Message.Content != "" {
			chatParts = append(chatParts, frag.Message.Content)
		}
	}

	if !decoded {
		return "", fmt.Errorf("response is not valid JSON")
	}

	// Chat content wins a tie since /api/chat replies can echo both fields.
	if len(chatParts) >= len(generateParts) && len(chatParts) > 0 {
		return strings.Join(chatParts, ""), nil
	}
	if len(generateParts) > 0 {
		return strings.Join(generateParts, ""), nil
	}
	return "", fmt.Errorf("response contained no model output")
}

// extractJSON pulls a JSON document out of model output that may be wrapped
// in markdown fences or surrounded by prose. Objects and arrays both count.
func extractJSON(text string) (json.RawMessage, error) {
	text = strings.TrimSpace(text)

	// Strip a ```json ... ``` fence if present.
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}

	if json.Valid([]byte(text)) {
		return json.RawMessage(text), nil
	}

	// Fall back to the outermost braced or bracketed region.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(text, pair[0])
		end := strings.LastIndex(text, pair[1])
		if start >= 0 && end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return json.RawMessage(candidate), nil
			}
		}
	}

	return nil, fmt.Errorf("output is not valid JSON")
}
