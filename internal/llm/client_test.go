package llm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/connections-insights/internal/resilience"
)

// sdkError builds an API error the way the SDK surfaces one: status code,
// request/response pair, and the raw error body from the wire.
func sdkError(t *testing.T, status int, body string) *sdk.Error {
	t.Helper()
	apiErr := &sdk.Error{}
	require.NoError(t, apiErr.UnmarshalJSON([]byte(body)))
	apiErr.StatusCode = status
	apiErr.Request = httptest.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)
	apiErr.Response = &http.Response{StatusCode: status}
	return apiErr
}

func TestClassifyRateLimitErrorIsThrottled(t *testing.T) {
	err := classifyAPIError(sdkError(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"Number of request tokens has exceeded your per-minute rate limit"}}`))
	assert.True(t, resilience.IsThrottled(err))
	assert.True(t, resilience.IsTransient(err))
}

func TestClassifyOverloadedIsThrottled(t *testing.T) {
	err := classifyAPIError(sdkError(t, statusOverloaded,
		`{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`))
	assert.True(t, resilience.IsThrottled(err))
}

func TestClassifyPromptTooLong(t *testing.T) {
	err := classifyAPIError(sdkError(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210061 tokens > 200000 maximum"}}`))
	assert.ErrorIs(t, err, resilience.ErrInputTooLong)
	assert.True(t, resilience.IsInputTooLong(err))
}

func TestClassifyServerErrorIsTransient(t *testing.T) {
	err := classifyAPIError(sdkError(t, http.StatusInternalServerError,
		`{"type":"error","error":{"type":"api_error","message":"Internal server error"}}`))
	assert.True(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsThrottled(err))
}

func TestClassifyAuthErrorPassesThrough(t *testing.T) {
	apiErr := sdkError(t, http.StatusUnauthorized,
		`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	err := classifyAPIError(apiErr)
	assert.Equal(t, error(apiErr), err)
	assert.False(t, resilience.IsTransient(err))
}

func TestQueryThrottleWaitsOnAPIRateLimit(t *testing.T) {
	fc := &fakeClient{responses: []fakeResult{{err: sdkError(t, http.StatusTooManyRequests,
		`{"type":"error","error":{"type":"rate_limit_error","message":"Number of request tokens has exceeded your per-minute rate limit"}}`)}}}
	inv := &Invoker{Client: fc, Model: "m", MaxTokens: 4000}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := inv.QueryPrompt(ctx, "ACME->extract", "sys", "p")
	require.Error(t, err)
	assert.Equal(t, 1, fc.calls, "call not repeated while throttled")
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond,
		"throttled call waits out the delay instead of failing fast")
}

func TestQueryShrinksOnAPIPromptTooLong(t *testing.T) {
	fc := &fakeClient{responses: []fakeResult{{err: sdkError(t, http.StatusBadRequest,
		`{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long: 210061 tokens > 200000 maximum"}}`)}}}
	inv := &Invoker{Client: fc, Model: "m", MaxTokens: 4000}

	_, err := inv.QueryPrompt(context.Background(), "ACME->summary", "sys", "huge")
	assert.ErrorIs(t, err, resilience.ErrInputTooLong)
	assert.Equal(t, 1, fc.calls)
}
