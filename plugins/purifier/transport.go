package purifier

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/joshp123/gohome-purifier/internal/rate"
	"github.com/joshp123/gohome-purifier/internal/secrets"
)

const (
	defaultBaseURL = "https://api.daikinsmartdb.jp"
	defaultTimeout = 5 * time.Second
	portNumber     = 30051
)

// Transport issues GET requests against the cloud API and returns the raw
// response body.
type Transport interface {
	Get(ctx context.Context, path string, params *CommandParameters) (string, error)
}

// HTTPTransport is the Transport used against the real service. Every
// request carries the login id, password and port query parameters and the
// Authorization header. Failed requests are never retried.
type HTTPTransport struct {
	baseURL    string
	loginID    string
	password   string
	httpClient *http.Client
	logger     *zap.Logger
}

// TransportOption customizes an HTTPTransport.
type TransportOption func(*HTTPTransport)

// WithLogger sets the transport logger.
func WithLogger(logger *zap.Logger) TransportOption {
	return func(t *HTTPTransport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRateLimits wraps the HTTP client in a request budget guard.
func WithRateLimits(decl rate.Declaration) TransportOption {
	return func(t *HTTPTransport) {
		if decl.HasLimits() {
			t.httpClient = rate.WrapHTTP(decl, t.httpClient)
		}
	}
}

func NewHTTPTransport(creds secrets.Credentials, baseURL string, timeout time.Duration, opts ...TransportOption) (*HTTPTransport, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	t := &HTTPTransport{
		baseURL:  baseURL,
		loginID:  creds.LoginID,
		password: creds.Password,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: authTransport(creds, http.DefaultTransport),
		},
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *HTTPTransport) Get(ctx context.Context, path string, params *CommandParameters) (string, error) {
	query := NewCommandParameters()
	if params != nil {
		query = query.Merge(params)
	}
	query.Set("id", t.loginID).
		Set("spw", t.password).
		SetInt("port", portNumber)

	endpoint, err := url.JoinPath(t.baseURL, path)
	if err != nil {
		return "", fmt.Errorf("build url: %w", err)
	}
	endpoint += "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	started := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Debug("purifier request failed", zap.String("path", path), zap.Error(err))
		return "", &TransportError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Path: path, Err: fmt.Errorf("read body: %w", err)}
	}

	t.logger.Debug("purifier request",
		zap.String("path", path),
		zap.Strings("params", params.Keys()),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &TransportError{
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(payload)),
		}
	}
	return string(payload), nil
}

// authTransport sets the Authorization header on every request. The cloud
// expects the stored token as is; a configured token type switches to the
// "<type> <token>" form.
func authTransport(creds secrets.Credentials, base http.RoundTripper) http.RoundTripper {
	if tokenType := strings.TrimSpace(creds.TokenType); tokenType != "" {
		return &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: creds.Token, TokenType: tokenType}),
			Base:   base,
		}
	}
	return &rawTokenTransport{token: creds.Token, base: base}
}

type rawTokenTransport struct {
	token string
	base  http.RoundTripper
}

func (t *rawTokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", t.token)
	return t.base.RoundTrip(req)
}
