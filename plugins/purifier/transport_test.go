package purifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/joshp123/gohome-purifier/internal/config"
	"github.com/joshp123/gohome-purifier/internal/rate"
	"github.com/joshp123/gohome-purifier/internal/secrets"
)

var testCreds = secrets.Credentials{
	LoginID:  "user@example.com",
	Password: "s3cret",
	Token:    "tok",
}

// fakeCloud serves get_unit_info and set_control_info and records requests.
type fakeCloud struct {
	mu       sync.Mutex
	requests []*http.Request
	status   int
	unit     string
	header   http.Header
}

func (f *fakeCloud) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Clone(context.Background()))
	status := f.status
	for key, values := range f.header {
		w.Header()[key] = values
	}
	f.mu.Unlock()

	if status != 0 && status != http.StatusOK {
		http.Error(w, "upstream unavailable", status)
		return
	}
	switch r.URL.Path {
	case pathUnitInfo:
		_, _ = w.Write([]byte(f.unit))
	case pathControlInfo:
		_, _ = w.Write([]byte("ret=OK"))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeCloud) last() *http.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func newFakeCloud(t *testing.T) (*fakeCloud, *httptest.Server) {
	t.Helper()
	cloud := &fakeCloud{unit: unitBody}
	srv := httptest.NewServer(cloud)
	t.Cleanup(srv.Close)
	return cloud, srv
}

func TestTransportAddsAuthentication(t *testing.T) {
	cloud, srv := newFakeCloud(t)

	transport, err := NewHTTPTransport(testCreds, srv.URL, 0, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)

	params := NewCommandParameters().SetInt("pow", 1)
	body, err := transport.Get(context.Background(), pathControlInfo, params)
	require.NoError(t, err)
	assert.Equal(t, "ret=OK", body)

	req := cloud.last()
	assert.Equal(t, "tok", req.Header.Get("Authorization"))
	assert.Equal(t, "pow=1&id=user%40example.com&spw=s3cret&port=30051", req.URL.RawQuery)

	query, err := url.ParseQuery(req.URL.RawQuery)
	require.NoError(t, err)
	assert.Equal(t, "30051", query.Get("port"))
	assert.Equal(t, []string{"pow"}, params.Keys(), "caller parameters are not mutated")
}

func TestTransportTokenType(t *testing.T) {
	cloud, srv := newFakeCloud(t)

	creds := testCreds
	creds.TokenType = "bearer"
	transport, err := NewHTTPTransport(creds, srv.URL, 0)
	require.NoError(t, err)

	_, err = transport.Get(context.Background(), pathUnitInfo, nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", cloud.last().Header.Get("Authorization"))
}

func TestTransportBudgetFloor(t *testing.T) {
	cloud, srv := newFakeCloud(t)
	cloud.header = http.Header{"X-Ratelimit-Remaining-Minute": {"2"}}

	decl := rateLimits(config.RateConfig{MaxPerMinute: 100, BudgetFloor: 2})
	transport, err := NewHTTPTransport(testCreds, srv.URL, 0, WithRateLimits(decl))
	require.NoError(t, err)

	_, err = transport.Get(context.Background(), pathUnitInfo, nil)
	require.NoError(t, err)
	_, err = transport.Get(context.Background(), pathUnitInfo, nil)

	var limited rate.RateLimitError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, "budget", limited.Reason)
	assert.Len(t, cloud.requests, 1)
}

func TestTransportNon2xx(t *testing.T) {
	cloud, srv := newFakeCloud(t)
	cloud.status = http.StatusServiceUnavailable

	transport, err := NewHTTPTransport(testCreds, srv.URL, 0)
	require.NoError(t, err)

	_, err = transport.Get(context.Background(), pathUnitInfo, nil)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, http.StatusServiceUnavailable, terr.StatusCode)
	assert.Equal(t, "upstream unavailable", terr.Body)
	assert.Contains(t, terr.Error(), "response code is out of 2xx: 503")
}

func TestTransportIOError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	transport, err := NewHTTPTransport(testCreds, srv.URL, 0)
	require.NoError(t, err)

	_, err = transport.Get(context.Background(), pathUnitInfo, nil)

	var terr *TransportError
	require.True(t, errors.As(err, &terr))
	assert.Zero(t, terr.StatusCode)
	assert.Error(t, terr.Unwrap())
}

func TestTransportHonoursContext(t *testing.T) {
	_, srv := newFakeCloud(t)
	transport, err := NewHTTPTransport(testCreds, srv.URL, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = transport.Get(ctx, pathUnitInfo, nil)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestTransportRateLimited(t *testing.T) {
	cloud, srv := newFakeCloud(t)

	transport, err := NewHTTPTransport(testCreds, srv.URL, 0,
		WithRateLimits(rate.Provider("purifier-test").MaxRequestsPer(rate.Minute, 1)))
	require.NoError(t, err)

	_, err = transport.Get(context.Background(), pathUnitInfo, nil)
	require.NoError(t, err)
	_, err = transport.Get(context.Background(), pathUnitInfo, nil)

	var limited rate.RateLimitError
	require.True(t, errors.As(err, &limited))
	assert.Equal(t, "purifier-test", limited.Provider)
	assert.Len(t, cloud.requests, 1)
}

func TestNewHTTPTransportValidatesCredentials(t *testing.T) {
	_, err := NewHTTPTransport(secrets.Credentials{LoginID: "x"}, "", 0)
	assert.Error(t, err)
}

func TestClientOverHTTP(t *testing.T) {
	cloud, srv := newFakeCloud(t)
	transport, err := NewHTTPTransport(testCreds, srv.URL, 0)
	require.NoError(t, err)
	client := NewClient(transport, zaptest.NewLogger(t))

	_, err = client.SetAirVolume(context.Background(), AirVolumeLow)
	require.NoError(t, err)

	require.Len(t, cloud.requests, 2)
	assert.Equal(t, pathUnitInfo, cloud.requests[0].URL.Path)
	write := cloud.requests[1]
	assert.Equal(t, pathControlInfo, write.URL.Path)
	assert.Equal(t, "pow=1&mode=0&airvol=2&humd=2&id=user%40example.com&spw=s3cret&port=30051", write.URL.RawQuery)
}
