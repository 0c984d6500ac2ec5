package purifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/joshp123/gohome-purifier/internal/rate"
)

const (
	unitEndpoint     = "/purifier/unit"
	controlEndpoint  = "/purifier/control"
	presetsEndpoint  = "/purifier/presets"
	setFieldEndpoint = "/purifier/set"
	requestTimeout   = 20 * time.Second
)

// controlRequest is the body of POST /purifier/control. Preserve names the
// dimensions to carry over from the unit: power, mode, air_volume, humidity.
type controlRequest struct {
	ControlChange
	Preserve []string `json:"preserve,omitempty"`
}

type service struct {
	client *Client
	logger *zap.Logger
}

func newService(client *Client, logger *zap.Logger) *service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{client: client, logger: logger}
}

func (s *service) register(mux *http.ServeMux) {
	mux.HandleFunc("GET "+unitEndpoint, s.getUnit)
	mux.HandleFunc("POST "+controlEndpoint, s.postControl)
	mux.HandleFunc("GET "+presetsEndpoint, s.listPresets)
	mux.HandleFunc("POST "+presetsEndpoint+"/{name}", s.postPreset)
	mux.HandleFunc("POST "+setFieldEndpoint+"/{field}/{value}", s.postField)
}

func (s *service) getUnit(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	info, err := s.client.QuerySnapshot(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *service) postControl(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("decode request: %v", err), http.StatusBadRequest)
		return
	}
	preserve, err := ParsePreserve(req.Preserve)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := s.client.UpdateControl(ctx, req.ControlChange, preserve)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *service) listPresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Presets())
}

func (s *service) postPreset(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := s.client.ApplyPreset(ctx, r.PathValue("name"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *service) postField(w http.ResponseWriter, r *http.Request) {
	if !s.ready(w) {
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	result, err := s.client.Apply(ctx, r.PathValue("field"), r.PathValue("value"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *service) ready(w http.ResponseWriter) bool {
	if s.client == nil {
		http.Error(w, "purifier client not configured", http.StatusServiceUnavailable)
		return false
	}
	return true
}

func (s *service) writeError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Warn("purifier request failed", zap.Error(err))
	}
	http.Error(w, err.Error(), status)
}

func statusForError(err error) int {
	var (
		validation *ValidationError
		protocol   *ProtocolError
		transport  *TransportError
		limited    rate.RateLimitError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &protocol), errors.As(err, &transport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ParsePreserve maps dimension names to a Preserve set.
func ParsePreserve(names []string) (Preserve, error) {
	var out Preserve
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "pow", "power":
			out |= PreservePower
		case "mode":
			out |= PreserveMode
		case "airvol", "air_volume":
			out |= PreserveAirVolume
		case "humd", "humidity":
			out |= PreserveHumidity
		case "all":
			out |= PreserveAll
		default:
			return PreserveNone, &ValidationError{Field: "preserve", Value: name}
		}
	}
	return out, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
