package purifier

import (
	"net/url"
	"strconv"
	"strings"
)

// CommandParameters is an ordered query parameter set. A key that is never
// inserted is not sent, which the device reads as "keep the current value".
type CommandParameters struct {
	keys   []string
	values map[string]string
}

func NewCommandParameters() *CommandParameters {
	return &CommandParameters{values: make(map[string]string)}
}

// Set inserts or replaces key. Replacing keeps the original position.
func (p *CommandParameters) Set(key, value string) *CommandParameters {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
	return p
}

// SetInt is Set for integer wire values.
func (p *CommandParameters) SetInt(key string, value int) *CommandParameters {
	return p.Set(key, strconv.Itoa(value))
}

// InsertIfPresent sets key only when value is non-nil.
func InsertIfPresent[T ~int](p *CommandParameters, key string, value *T) *CommandParameters {
	if value == nil {
		return p
	}
	return p.SetInt(key, int(*value))
}

func (p *CommandParameters) Get(key string) (string, bool) {
	if p == nil {
		return "", false
	}
	value, ok := p.values[key]
	return value, ok
}

func (p *CommandParameters) Has(key string) bool {
	_, ok := p.Get(key)
	return ok
}

func (p *CommandParameters) Keys() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.keys...)
}

func (p *CommandParameters) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Merge returns a copy of p with every key of other appended or replaced.
func (p *CommandParameters) Merge(other *CommandParameters) *CommandParameters {
	out := NewCommandParameters()
	for _, key := range p.Keys() {
		out.Set(key, p.values[key])
	}
	for _, key := range other.Keys() {
		out.Set(key, other.values[key])
	}
	return out
}

// Encode renders the parameters as a query string in insertion order.
func (p *CommandParameters) Encode() string {
	if p.Len() == 0 {
		return ""
	}
	var b strings.Builder
	for i, key := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[key]))
	}
	return b.String()
}

// controlParameters builds the set_control_info query. Power is mandatory.
func controlParameters(change ControlChange) *CommandParameters {
	params := NewCommandParameters()
	InsertIfPresent(params, "pow", change.Power)
	InsertIfPresent(params, "mode", change.Mode)
	InsertIfPresent(params, "airvol", change.AirVolume)
	InsertIfPresent(params, "humd", change.Humidity)
	InsertIfPresent(params, "acOpeMode", change.OperationSubMode)
	return params
}
