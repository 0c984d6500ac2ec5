package purifier

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/gohome-purifier/internal/rate"
)

func newTestMux(ft *fakeTransport) *http.ServeMux {
	mux := http.NewServeMux()
	newService(newTestClient(ft), nil).register(mux)
	return mux
}

func serve(mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestServiceGetUnit(t *testing.T) {
	rec := serve(newTestMux(&fakeTransport{unit: unitBody}), http.MethodGet, unitEndpoint, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var info UnitInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, ModeCirculator, info.Control.Mode)
	assert.Equal(t, HumidityStandard, info.Control.Humidity)
}

func TestServicePostControl(t *testing.T) {
	ft := &fakeTransport{unit: unitBody}
	rec := serve(newTestMux(ft), http.MethodPost, controlEndpoint,
		`{"air_volume":3,"preserve":["mode","humidity"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result ControlResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "OK", result.Result)
	assert.Equal(t, map[string]string{
		"pow":    "1",
		"mode":   "5",
		"airvol": "3",
		"humd":   "2",
	}, paramMap(ft.writes()[0].params))
}

func TestServiceErrors(t *testing.T) {
	cases := []struct {
		name   string
		ft     *fakeTransport
		method string
		target string
		body   string
		status int
	}{
		{"bad json", &fakeTransport{}, http.MethodPost, controlEndpoint, "{", http.StatusBadRequest},
		{"out of domain", &fakeTransport{}, http.MethodPost, controlEndpoint, `{"air_volume":4}`, http.StatusBadRequest},
		{"bad preserve", &fakeTransport{}, http.MethodPost, controlEndpoint, `{"preserve":["fan"]}`, http.StatusBadRequest},
		{"unknown preset", &fakeTransport{}, http.MethodPost, presetsEndpoint + "/turbo", "", http.StatusBadRequest},
		{"upstream down", &fakeTransport{err: &TransportError{StatusCode: 500}}, http.MethodGet, unitEndpoint, "", http.StatusBadGateway},
		{"protocol", &fakeTransport{unit: "ret=OK"}, http.MethodGet, unitEndpoint, "", http.StatusBadGateway},
		{"rate limited", &fakeTransport{err: &TransportError{Err: rate.RateLimitError{Provider: "purifier"}}}, http.MethodGet, unitEndpoint, "", http.StatusTooManyRequests},
		{"wrong method", &fakeTransport{}, http.MethodPost, unitEndpoint, "", http.StatusMethodNotAllowed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(newTestMux(tc.ft), tc.method, tc.target, tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.status == http.StatusBadRequest {
				assert.Empty(t, tc.ft.calls)
			}
		})
	}
}

func TestServicePresets(t *testing.T) {
	ft := &fakeTransport{unit: unitBody}
	mux := newTestMux(ft)

	rec := serve(mux, http.MethodGet, presetsEndpoint, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var names []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &names))
	assert.Equal(t, Presets(), names)

	rec = serve(mux, http.MethodPost, presetsEndpoint+"/smart", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, map[string]string{"pow": "1", "mode": "1", "airvol": "0", "humd": "4"}, paramMap(ft.writes()[0].params))
}

func TestServiceSetField(t *testing.T) {
	ft := &fakeTransport{unit: unitBody}

	rec := serve(newTestMux(ft), http.MethodPost, fmt.Sprintf("%s/humd/high", setFieldEndpoint), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, _ := ft.writes()[0].params.Get("humd")
	assert.Equal(t, "3", got)
}

func TestServiceWithoutClient(t *testing.T) {
	mux := http.NewServeMux()
	newService(nil, nil).register(mux)

	rec := serve(mux, http.MethodGet, unitEndpoint, "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestParsePreserve(t *testing.T) {
	got, err := ParsePreserve([]string{"power", "airvol"})
	require.NoError(t, err)
	assert.True(t, got.Has(PreservePower))
	assert.True(t, got.Has(PreserveAirVolume))
	assert.False(t, got.Has(PreserveMode))

	got, err = ParsePreserve([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, PreserveAll, got)

	_, err = ParsePreserve([]string{"fan"})
	assert.Error(t, err)
}
