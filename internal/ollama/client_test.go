package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := NewClient(server.URL, "test-model", 10*time.Second, nil, zap.NewNop())
	return client, server
}

func chatReply(content string) string {
	raw, _ := json.Marshal(map[string]interface{}{
		"message": map[string]string{"role": "assistant", "content": content},
		"done":    true,
	})
	return string(raw)
}

func TestPing(t *testing.T) {
	t.Run("reachable service", func(t *testing.T) {
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/tags", r.URL.Path)
			fmt.Fprint(w, `{"models":[]}`)
		})
		require.NoError(t, client.Ping(context.Background()))
	})

	t.Run("unreachable service is a ConnectionError", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", "m", time.Second, nil, zap.NewNop())
		err := client.Ping(context.Background())
		var cerr *ConnectionError
		require.ErrorAs(t, err, &cerr)
	})
}

func TestListModels(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"models":[{"name":"llama3.2:latest"},{"name":"mistral:7b"}]}`)
	})

	names, err := client.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.2:latest", "mistral:7b"}, names)
}

func TestGenerate(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "test-model", payload["model"])
		assert.Equal(t, false, payload["stream"])

		fmt.Fprint(w, `{"response":"hello there","done":true}`)
	})

	text, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestStructuredGenerateRetries(t *testing.T) {
	t.Run("malformed replies exhaust retries", func(t *testing.T) {
		var temps []float64
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			var payload struct {
				Options struct {
					Temperature float64 `json:"temperature"`
				} `json:"options"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			temps = append(temps, payload.Options.Temperature)
			fmt.Fprint(w, chatReply("this is not json at all"))
		})

		_, err := client.StructuredGenerate(context.Background(), StructuredRequest{
			Prompt:      "extract",
			Temperature: 0.5,
		})
		var merr *MalformedResponseError
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, 3, merr.Attempts)

		// Each retry cools the temperature by the decay factor.
		require.Len(t, temps, 3)
		assert.InDelta(t, 0.5, temps[0], 1e-9)
		assert.InDelta(t, 0.4, temps[1], 1e-9)
		assert.InDelta(t, 0.32, temps[2], 1e-9)
	})

	t.Run("recovers on a later attempt", func(t *testing.T) {
		calls := 0
		client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			calls++
			if calls == 1 {
				fmt.Fprint(w, chatReply("sorry, no json here"))
				return
			}
			fmt.Fprint(w, chatReply(`{"ok":true}`))
		})

		raw, err := client.StructuredGenerate(context.Background(), StructuredRequest{Prompt: "extract"})
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(raw))
		assert.Equal(t, 2, calls)
	})

	t.Run("connection failure is not retried", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", "m", time.Second, nil, zap.NewNop())
		_, err := client.StructuredGenerate(context.Background(), StructuredRequest{Prompt: "x"})
		var cerr *ConnectionError
		require.ErrorAs(t, err, &cerr)
	})
}

func TestStructuredGenerateCaching(t *testing.T) {
	newCachedClient := func(t *testing.T, ttl time.Duration, calls *int) *Client {
		t.Helper()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*calls++
			fmt.Fprint(w, chatReply(`{"ok":true}`))
		}))
		t.Cleanup(server.Close)

		cache, err := NewResponseCache(t.TempDir(), ttl, zap.NewNop())
		require.NoError(t, err)
		return NewClient(server.URL, "test-model", 10*time.Second, cache, zap.NewNop())
	}

	req := StructuredRequest{Prompt: "extract", Temperature: 0.2}

	t.Run("repeat request is served from cache", func(t *testing.T) {
		calls := 0
		client := newCachedClient(t, time.Hour, &calls)

		first, err := client.StructuredGenerate(context.Background(), req)
		require.NoError(t, err)
		second, err := client.StructuredGenerate(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, string(first), string(second))
		assert.Equal(t, 1, calls)
	})

	t.Run("different prompt is a miss", func(t *testing.T) {
		calls := 0
		client := newCachedClient(t, time.Hour, &calls)

		_, err := client.StructuredGenerate(context.Background(), req)
		require.NoError(t, err)
		_, err = client.StructuredGenerate(context.Background(), StructuredRequest{Prompt: "something else", Temperature: 0.2})
		require.NoError(t, err)

		assert.Equal(t, 2, calls)
	})

	t.Run("expired entry falls through to the service", func(t *testing.T) {
		calls := 0
		client := newCachedClient(t, -time.Second, &calls)

		_, err := client.StructuredGenerate(context.Background(), req)
		require.NoError(t, err)
		_, err = client.StructuredGenerate(context.Background(), req)
		require.NoError(t, err)

		assert.Equal(t, 2, calls)
	})
}

func TestRetryPolicyTemperature(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.InDelta(t, 0.7, p.TemperatureAt(0, 0.7), 1e-9)
	assert.InDelta(t, 0.56, p.TemperatureAt(1, 0.7), 1e-9)
	assert.InDelta(t, 0.448, p.TemperatureAt(2, 0.7), 1e-9)

	// The floor only catches decayed retries; a low base passes through
	// untouched on the first attempt.
	assert.InDelta(t, 0.1, p.TemperatureAt(3, 0.1), 1e-9)
	assert.InDelta(t, 0.05, p.TemperatureAt(0, 0.05), 1e-9)
	assert.InDelta(t, 0.1, p.TemperatureAt(1, 0.05), 1e-9)
}

func TestAssembleResponse(t *testing.T) {
	t.Run("single chat object", func(t *testing.T) {
		text, err := assembleResponse([]byte(chatReply("hello")))
		require.NoError(t, err)
		assert.Equal(t, "hello", text)
	})

	t.Run("ndjson generate fragments are reassembled", func(t *testing.T) {
		body := `{"response":"{\"a\":","done":false}` + "\n" +
			`{"response":"1}","done":true}` + "\n"
		text, err := assembleResponse([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, text)
	})

	t.Run("ndjson chat fragments are reassembled", func(t *testing.T) {
		body := `{"message":{"role":"assistant","content":"foo "},"done":false}` + "\n" +
			`{"message":{"role":"assistant","content":"bar"},"done":true}`
		text, err := assembleResponse([]byte(body))
		require.NoError(t, err)
		assert.Equal(t, "foo bar", text)
	})

	t.Run("service error is surfaced", func(t *testing.T) {
		_, err := assembleResponse([]byte(`{"error":"model not found"}`))
		require.ErrorContains(t, err, "model not found")
	})

	t.Run("garbage body fails", func(t *testing.T) {
		_, err := assembleResponse([]byte("<html>not json</html>"))
		require.Error(t, err)
	})
}

func TestExtractJSON(t *testing.T) {
	t.Run("bare object", func(t *testing.T) {
		out, err := extractJSON(`{"a": 1}`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(out))
	})

	t.Run("markdown fence is stripped", func(t *testing.T) {
		out, err := extractJSON("```json\n{\"a\": 1}\n```")
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(out))
	})

	t.Run("object embedded in prose", func(t *testing.T) {
		out, err := extractJSON(`Here is the result: {"a": 1} hope that helps`)
		require.NoError(t, err)
		assert.JSONEq(t, `{"a":1}`, string(out))
	})

	t.Run("arrays work too", func(t *testing.T) {
		out, err := extractJSON(`The entries are [1, 2, 3].`)
		require.NoError(t, err)
		assert.JSONEq(t, `[1,2,3]`, string(out))
	})

	t.Run("no json at all", func(t *testing.T) {
		_, err := extractJSON("I could not produce any structured output")
		require.Error(t, err)
	})
}
