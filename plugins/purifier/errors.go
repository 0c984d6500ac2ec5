package purifier

import "fmt"

// TransportError is returned when the cloud API could not be reached or
// answered outside the 2xx range. StatusCode is 0 for I/O failures.
type TransportError struct {
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request %s: %v", e.Path, e.Err)
	}
	if e.Body == "" {
		return fmt.Sprintf("response code is out of 2xx: %d (%s)", e.StatusCode, e.Path)
	}
	return fmt.Sprintf("response code is out of 2xx: %d (%s): %s", e.StatusCode, e.Path, e.Body)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is returned when a response decodes but lacks required fields.
type ProtocolError struct {
	Endpoint string
	Missing  []string
	Reason   string
}

func (e *ProtocolError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("%s: missing required fields %v", e.Endpoint, e.Missing)
	}
	return fmt.Sprintf("%s: %s", e.Endpoint, e.Reason)
}

// ValidationError is returned before any request when a value falls outside
// its enumerated domain.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s value %q", e.Field, e.Value)
}
