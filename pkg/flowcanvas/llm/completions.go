package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	fgerrors "github.com/randalmurphal/flowcanvas/pkg/flowcanvas/errors"
)

// DefaultEndpoint is the OpenAI-style text completions endpoint.
const DefaultEndpoint = "https://api.openai.com/v1/completions"

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 1 << 20

// CompletionsClient implements Client against an OpenAI-style
// completions endpoint over HTTPS.
type CompletionsClient struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// CompletionsOption configures CompletionsClient.
type CompletionsOption func(*CompletionsClient)

// NewCompletionsClient creates a client for DefaultEndpoint unless
// overridden with WithEndpoint.
func NewCompletionsClient(opts ...CompletionsOption) *CompletionsClient {
	c := &CompletionsClient{
		endpoint:   DefaultEndpoint,
		httpClient: http.DefaultClient,
		timeout:    60 * time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithEndpoint sets the completions URL.
func WithEndpoint(url string) CompletionsOption {
	return func(c *CompletionsClient) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) CompletionsOption {
	return func(c *CompletionsClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds a single request. Zero disables the client-side bound.
func WithTimeout(d time.Duration) CompletionsOption {
	return func(c *CompletionsClient) { c.timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) CompletionsOption {
	return func(c *CompletionsClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Endpoint returns the configured completions URL.
func (c *CompletionsClient) Endpoint() string {
	return c.endpoint
}

// Complete implements Client.
func (c *CompletionsClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, NewError("encode", ErrUnavailable, err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, NewError("complete", ErrUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+req.Credential)

	c.logger.Debug("sending completion request",
		slog.String("endpoint", c.endpoint),
		slog.String("model", req.Model),
		slog.Int("prompt_chars", len(req.Prompt)),
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, NewError("complete", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &Error{Op: "read", Kind: ErrUnavailable, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		kind := ErrUnavailable
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = ErrUnauthorized
		}
		return nil, &Error{
			Op:         "complete",
			Kind:       kind,
			StatusCode: resp.StatusCode,
			Err: &fgerrors.HTTPError{
				StatusCode: resp.StatusCode,
				Message:    apiErrorMessage(data),
				Endpoint:   c.endpoint,
			},
		}
	}

	out, err := parseCompletion(data)
	if err != nil {
		return nil, &Error{Op: "decode", Kind: ErrMalformedResponse, StatusCode: resp.StatusCode, Err: err}
	}
	out.Duration = time.Since(start)
	if out.Model == "" {
		out.Model = req.Model
	}
	return out, nil
}

// completionsBody is the subset of the completions response we read.
type completionsBody struct {
	Model   string `json:"model"`
	Choices []struct {
		Text         *string `json:"text"`
		FinishReason string  `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

var (
	errNoChoices   = errors.New("response has no choices")
	errNoText      = errors.New("first choice has no text field")
	errNotAnObject = errors.New("response is not a JSON object")
)

// parseCompletion extracts choices[0].text. A present but empty text is a
// valid completion; an absent one is not.
func parseCompletion(data []byte) (*CompletionResponse, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, errNotAnObject
	}

	var body completionsBody
	if err := json.Unmarshal(trimmed, &body); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if len(body.Choices) == 0 {
		return nil, errNoChoices
	}
	first := body.Choices[0]
	if first.Text == nil {
		return nil, errNoText
	}

	out := &CompletionResponse{
		Content:      *first.Text,
		Model:        body.Model,
		FinishReason: first.FinishReason,
	}
	if body.Usage != nil {
		out.Usage = TokenUsage{
			InputTokens:  body.Usage.PromptTokens,
			OutputTokens: body.Usage.CompletionTokens,
			TotalTokens:  body.Usage.TotalTokens,
		}
	}
	return out, nil
}

// apiErrorMessage pulls error.message out of an error body, falling back to
// a truncated copy of the raw body.
func apiErrorMessage(data []byte) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}
