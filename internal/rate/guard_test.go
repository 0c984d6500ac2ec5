package rate

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuardDisabledWithoutLimits(t *testing.T) {
	g := NewGuard(Provider("test"))

	d := g.ShouldCall(time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, "disabled", d.Reason)
}

func TestGuardMinuteBudget(t *testing.T) {
	g := NewGuard(Provider("test").MaxRequestsPer(Minute, 2))
	now := time.Now()

	assert.True(t, g.ShouldCall(now).Allowed)
	assert.True(t, g.ShouldCall(now).Allowed)

	d := g.ShouldCall(now)
	assert.False(t, d.Allowed)
	assert.Equal(t, "budget", d.Reason)
	assert.True(t, d.RetryAt.After(now))

	assert.True(t, g.ShouldCall(now.Add(time.Minute)).Allowed)
}

func TestGuardDeniedWindowDoesNotSpendOthers(t *testing.T) {
	g := NewGuard(Provider("test").
		MaxRequestsPer(Minute, 1).
		MaxRequestsPer(Day, 2))
	now := time.Now()

	require.True(t, g.ShouldCall(now).Allowed)
	require.False(t, g.ShouldCall(now).Allowed)
	require.False(t, g.ShouldCall(now).Allowed)

	// Only one day token was spent, so the next minute still has budget.
	assert.True(t, g.ShouldCall(now.Add(time.Minute)).Allowed)
	assert.False(t, g.ShouldCall(now.Add(2*time.Minute)).Allowed)
}

func TestGuardHonoursHeaders(t *testing.T) {
	g := NewGuard(Provider("test").
		MaxRequestsPer(Minute, 100).
		BudgetFloor(Minute, 1).
		ReadHeaders(StandardHeaders()))

	h := http.Header{}
	h.Set("X-RateLimit-Remaining-minute", "1")
	h.Set("X-RateLimit-Limit-minute", "100")
	g.RecordResponse(http.StatusOK, h)

	d := g.ShouldCall(time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, "budget", d.Reason)
	assert.Equal(t, http.StatusOK, g.state.LastStatus())
}

func TestGuardRetryAfterCooldown(t *testing.T) {
	g := NewGuard(Provider("test").
		MaxRequestsPer(Minute, 10).
		ReadHeaders(StandardHeaders()))

	h := http.Header{}
	h.Set("Retry-After", "30")
	g.RecordResponse(http.StatusTooManyRequests, h)

	d := g.ShouldCall(time.Now())
	assert.False(t, d.Allowed)
	assert.Equal(t, "cooldown", d.Reason)
	assert.False(t, d.RetryAt.IsZero())
}

func TestWrapHTTPBlocksWithoutCallingUpstream(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("ret=OK"))
	}))
	defer srv.Close()

	client := WrapHTTP(Provider("test").MaxRequestsPer(Minute, 1), nil)

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	_, err = client.Get(srv.URL)
	require.Error(t, err)
	var rle RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "test", rle.Provider)
	assert.Equal(t, int32(1), hits.Load())
}
