package resilience

import (
	"errors"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestErrorClassification(t *testing.T) {
	cfgErr := NewConfigError("places.key is required")
	authErr := &AuthError{Service: "mailer", Err: errors.New("401")}
	rateErr := &RateLimitError{Service: "places", Err: errors.New("429")}
	dataErr := &DataError{Record: "lead-1", Err: errors.New("bad json")}

	assert.True(t, IsConfig(cfgErr))
	assert.True(t, IsAuth(authErr))
	assert.True(t, IsRateLimit(rateErr))
	assert.True(t, IsData(dataErr))

	// Classification survives wrapping.
	assert.True(t, IsConfig(eris.Wrap(cfgErr, "preflight")))
	assert.True(t, IsAuth(eris.Wrap(authErr, "send")))

	assert.False(t, IsConfig(authErr))
	assert.False(t, IsAuth(errors.New("plain")))
}

func TestIsRetryable(t *testing.T) {
	assert.False(t, IsRetryable(nil))
	assert.False(t, IsRetryable(NewConfigError("bad config")))
	assert.False(t, IsRetryable(&AuthError{Service: "places", Err: errors.New("403")}))
	assert.False(t, IsRetryable(&DataError{Record: "r", Err: errors.New("bad")}))
	assert.False(t, IsRetryable(errors.New("validation failed")))

	assert.True(t, IsRetryable(&RateLimitError{Service: "places", Err: errors.New("429")}))
	assert.True(t, IsRetryable(&NetworkError{Op: "fetch", Err: errors.New("refused")}))
	assert.True(t, IsRetryable(syscall.ECONNRESET))
	assert.True(t, IsRetryable(&net.DNSError{Err: "timeout", IsTimeout: true}))
	assert.True(t, IsRetryable(errors.New("read tcp: connection reset by peer")))
	assert.True(t, IsRetryable(errors.New("dial tcp: i/o timeout")))
	assert.True(t, IsRetryable(eris.Wrap(&NetworkError{Op: "fetch", Err: errors.New("eof")}, "page")))
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404} {
		assert.False(t, RetryableStatus(code), "status %d", code)
	}
}
