package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/meguminnnnnnnnn/go-openai"

	"github.com/prime30/synapse-sub013/internal/engine"
)

var (
	ErrMissingAPIKey   = errors.New("API key not set")
	ErrUnknownProvider = errors.New("unknown LLM provider")
)

// wrapProviderError attaches the HTTP status and Retry-After hint so the
// engine can classify the failure.
func wrapProviderError(err error) error {
	status, retryAfter := errorMetadata(err)
	return engine.WrapLLMError(err, status, retryAfter)
}

// errorMetadata prefers the typed SDK error and falls back to scanning the
// message, which is all the Anthropic SDK exposes.
func errorMetadata(err error) (int, string) {
	if err == nil {
		return 0, ""
	}

	var status int
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	msg := err.Error()
	if status == 0 {
		for _, code := range []int{
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusBadRequest,
			http.StatusPaymentRequired,
		} {
			if strings.Contains(msg, fmt.Sprint(code)) {
				status = code
				break
			}
		}
	}

	lower := strings.ToLower(msg)
	for _, marker := range []string{"retry-after", "retry after"} {
		if idx := strings.Index(lower, marker); idx != -1 {
			if fields := strings.Fields(strings.TrimLeft(msg[idx+len(marker):], ": ")); len(fields) > 0 {
				return status, fields[0]
			}
		}
	}
	return status, ""
}

func decodeSchema(ts engine.ToolSchema) (map[string]any, error) {
	var schema map[string]any
	if err := json.Unmarshal([]byte(ts.JSONSchema), &schema); err != nil {
		return nil, fmt.Errorf("invalid tool schema JSON for %s: %w", ts.Name, err)
	}
	return schema, nil
}

// decodeToolCall parses tool arguments. Malformed arguments are reported on
// the call so the engine can answer with a tool error instead of failing
// the step.
func decodeToolCall(id, name string, raw []byte) engine.ToolCall {
	call := engine.ToolCall{ID: id, Name: name, Args: map[string]any{}}
	if len(raw) == 0 {
		return call
	}
	if err := json.Unmarshal(raw, &call.Args); err != nil {
		call.Args = map[string]any{}
		call.Error = fmt.Sprintf("malformed arguments: %v", err)
	}
	if call.Args == nil {
		call.Args = map[string]any{}
	}
	return call
}

func isErrorResult(content string) bool {
	return strings.HasPrefix(content, "ERROR: ")
}
