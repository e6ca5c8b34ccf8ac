package ollama

import "fmt"

// ConnectionError means the Ollama service could not be reached at all.
// Retrying with a different temperature will not help, so generation
// gives up immediately on this error.
type ConnectionError struct {
	BaseURL string
	Err     error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("cannot reach ollama at %s: %v", e.BaseURL, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ResponseError is a non-2xx reply from the service.
type ResponseError struct {
	StatusCode int
	Body       string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("ollama returned status %d: %s", e.StatusCode, e.Body)
}

// MalformedResponseError means every generation attempt produced output
// that could not be parsed against the requested schema. Raw holds the
// last attempt's output for diagnostics.
type MalformedResponseError struct {
	Attempts int
	Raw      string
	Err      error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("no valid structured response after %d attempts: %v", e.Attempts, e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
