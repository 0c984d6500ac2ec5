package purifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

const (
	pathUnitInfo    = "/cleaner/get_unit_info"
	pathControlInfo = "/cleaner/set_control_info"
	endpointControl = "set_control_info"
	resultOK        = "OK"
)

// Preserve selects control dimensions to carry over from the current unit
// state when the caller does not set them.
type Preserve uint8

const (
	PreservePower Preserve = 1 << iota
	PreserveMode
	PreserveAirVolume
	PreserveHumidity

	PreserveNone Preserve = 0
	PreserveAll           = PreservePower | PreserveMode | PreserveAirVolume | PreserveHumidity
)

func (p Preserve) Has(flag Preserve) bool {
	return p&flag != 0
}

// ControlResult is the outcome of a set_control_info call.
type ControlResult struct {
	// Result is the "ret" field of the acknowledgement, usually "OK".
	Result string `json:"result"`
	// Control holds the submitted values overlaid with any values the
	// acknowledgement echoed. Dimensions that were neither sent nor echoed
	// are nil.
	Control ControlChange `json:"control"`
	// Params lists the submitted query keys in order, without credentials.
	Params []string `json:"params"`
}

// Complete returns the full control vector when every dimension is known.
func (r ControlResult) Complete() (ControlInfo, bool) {
	c := r.Control
	if c.Power == nil || c.Mode == nil || c.AirVolume == nil || c.Humidity == nil {
		return ControlInfo{}, false
	}
	return ControlInfo{
		Power:            *c.Power,
		Mode:             *c.Mode,
		AirVolume:        *c.AirVolume,
		Humidity:         *c.Humidity,
		OperationSubMode: c.OperationSubMode,
	}, true
}

// Client reads and writes the control state of a single unit.
//
// A Client holds no device state between calls. Every read-modify-write
// fetches a fresh snapshot because the unit can be changed out of band.
type Client struct {
	transport Transport
	logger    *zap.Logger
}

func NewClient(transport Transport, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{transport: transport, logger: logger}
}

// QuerySnapshot fetches and decodes the current unit state.
func (c *Client) QuerySnapshot(ctx context.Context) (UnitInfo, error) {
	body, err := c.transport.Get(ctx, pathUnitInfo, nil)
	if err != nil {
		return UnitInfo{}, err
	}
	info, err := unitInfoFromRaw(Decode(body, NestedDecode))
	if err != nil {
		c.logger.Warn("unit info incomplete", zap.Error(err))
		return UnitInfo{}, err
	}
	return info, nil
}

// SetControlInfo submits change as-is. Power is required; every other nil
// field is left out of the command so the unit keeps its value.
func (c *Client) SetControlInfo(ctx context.Context, change ControlChange) (ControlResult, error) {
	if err := change.Validate(); err != nil {
		return ControlResult{}, err
	}
	if change.Power == nil {
		return ControlResult{}, &ValidationError{Field: "pow", Value: ""}
	}

	params := controlParameters(change)
	body, err := c.transport.Get(ctx, pathControlInfo, params)
	if err != nil {
		return ControlResult{}, err
	}
	ack := Decode(body, FlatDecode)

	result := ControlResult{Control: change, Params: params.Keys()}
	result.Result, _ = ack.String("ret")
	if result.Result != "" && result.Result != resultOK {
		return ControlResult{}, &ProtocolError{
			Endpoint: endpointControl,
			Reason:   fmt.Sprintf("command rejected: %s", result.Result),
		}
	}
	result.Control = echoedControl(ack).overlay(change)

	c.logger.Info("purifier control updated",
		zap.Strings("params", result.Params),
		zap.String("result", result.Result),
	)
	return result, nil
}

// UpdateControl applies change and carries over every dimension in preserve
// that change leaves unset. Power is always carried over when unset. A
// snapshot is read only when at least one dimension has to be carried over.
//
// The read and the write are separate requests. Another controller (the
// vendor app or the physical remote) may change the unit in between, and two
// concurrent UpdateControl calls can interleave so that the later write
// reverts a field the earlier one just set. The cloud API offers no
// compare-and-swap, so callers that need ordering must serialize their calls.
func (c *Client) UpdateControl(ctx context.Context, change ControlChange, preserve Preserve) (ControlResult, error) {
	if err := change.Validate(); err != nil {
		return ControlResult{}, err
	}

	needed := missingDimensions(change, preserve|PreservePower)
	if needed == PreserveNone {
		return c.SetControlInfo(ctx, change)
	}

	snapshot, err := c.QuerySnapshot(ctx)
	if err != nil {
		return ControlResult{}, err
	}
	merged := change.overlay(carryOver(snapshot.Control, needed))

	c.logger.Debug("read-modify-write",
		zap.Stringer("carried_power", snapshot.Control.Power),
		zap.Stringer("carried_mode", snapshot.Control.Mode),
		zap.Stringer("carried_air_volume", snapshot.Control.AirVolume),
		zap.Stringer("carried_humidity", snapshot.Control.Humidity),
	)
	return c.SetControlInfo(ctx, merged)
}

func missingDimensions(change ControlChange, preserve Preserve) Preserve {
	var needed Preserve
	if preserve.Has(PreservePower) && change.Power == nil {
		needed |= PreservePower
	}
	if preserve.Has(PreserveMode) && change.Mode == nil {
		needed |= PreserveMode
	}
	if preserve.Has(PreserveAirVolume) && change.AirVolume == nil {
		needed |= PreserveAirVolume
	}
	if preserve.Has(PreserveHumidity) && change.Humidity == nil {
		needed |= PreserveHumidity
	}
	return needed
}

func carryOver(current ControlInfo, dims Preserve) ControlChange {
	var out ControlChange
	if dims.Has(PreservePower) {
		out.Power = Ptr(current.Power)
	}
	if dims.Has(PreserveMode) {
		out.Mode = Ptr(current.Mode)
	}
	if dims.Has(PreserveAirVolume) {
		out.AirVolume = Ptr(current.AirVolume)
	}
	if dims.Has(PreserveHumidity) {
		out.Humidity = Ptr(current.Humidity)
	}
	return out
}

// echoedControl reads control values the acknowledgement sent back. Values
// that do not parse are ignored.
func echoedControl(ack *RawKeyValueMap) ControlChange {
	var out ControlChange
	if value, ok := ack.String("pow"); ok {
		if parsed, err := ParsePower(value); err == nil {
			out.Power = &parsed
		}
	}
	if value, ok := ack.String("mode"); ok {
		if parsed, err := ParseMode(value); err == nil {
			out.Mode = &parsed
		}
	}
	if value, ok := ack.String("airvol"); ok {
		if parsed, err := ParseAirVolume(value); err == nil {
			out.AirVolume = &parsed
		}
	}
	if value, ok := ack.String("humd"); ok {
		if parsed, err := ParseHumidity(value); err == nil {
			out.Humidity = &parsed
		}
	}
	return out
}
