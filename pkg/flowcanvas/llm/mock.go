package llm

import (
	"context"
	"strings"
	"sync"
)

// MockClient is a scriptable Client for tests, examples and dry runs.
type MockClient struct {
	mu           sync.Mutex
	responses    []string
	next         int
	err          error
	completeFunc func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	release      <-chan struct{}
	started      chan struct{}

	// Calls records every request in arrival order.
	Calls []CompletionRequest
}

// Compile-time interface check.
var _ Client = (*MockClient)(nil)

// NewMockClient returns a mock that answers every call with response.
func NewMockClient(response string) *MockClient {
	return &MockClient{
		responses: []string{response},
		started:   make(chan struct{}, 64),
	}
}

// WithResponses cycles through responses on successive calls.
func (m *MockClient) WithResponses(responses ...string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(responses) > 0 {
		m.responses = responses
		m.next = 0
	}
	return m
}

// WithError makes every call fail with err.
func (m *MockClient) WithError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithCompleteFunc replaces the scripted behaviour entirely.
func (m *MockClient) WithCompleteFunc(fn func(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// WithRelease holds every call in flight until release is closed or
// receives a value. Use Started to learn when a call has arrived.
func (m *MockClient) WithRelease(release <-chan struct{}) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.release = release
	return m
}

// Started receives one value per call as soon as the call is recorded.
func (m *MockClient) Started() <-chan struct{} {
	return m.started
}

// Complete implements Client.
func (m *MockClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	release := m.release
	fn := m.completeFunc
	err := m.err
	content := m.responses[m.next%len(m.responses)]
	m.next++
	m.mu.Unlock()

	select {
	case m.started <- struct{}{}:
	default:
	}

	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return nil, NewError("complete", ErrUnavailable, ctx.Err())
		}
	}

	if ctx.Err() != nil {
		return nil, NewError("complete", ErrUnavailable, ctx.Err())
	}
	if fn != nil {
		return fn(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	// Approximate token counts by whitespace-separated words.
	in := len(strings.Fields(req.Prompt)) + 1
	out := len(strings.Fields(content)) + 1
	return &CompletionResponse{
		Content:      content,
		Model:        req.Model,
		FinishReason: "stop",
		Usage: TokenUsage{
			InputTokens:  in,
			OutputTokens: out,
			TotalTokens:  in + out,
		},
	}, nil
}

// CallCount returns the number of calls made.
func (m *MockClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request, or nil if none.
func (m *MockClient) LastCall() *CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	last := m.Calls[len(m.Calls)-1]
	return &last
}

// Reset clears recorded calls and restarts the response cycle.
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.next = 0
}
