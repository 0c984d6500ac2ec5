package purifier

import (
	"context"
	"sort"
	"strings"
)

// Preset is a named control overlay. Preserve lists the dimensions taken
// from the current unit state instead of being pinned.
type Preset struct {
	Name     string
	Change   ControlChange
	Preserve Preserve
}

var presets = map[string]Preset{
	"smart": {
		Name:   "smart",
		Change: pinned(ModeSmart, HumidityAuto),
	},
	"autofan": {
		Name:     "autofan",
		Change:   pinned(ModeAutofan, -1),
		Preserve: PreserveHumidity,
	},
	"econo": {
		Name:     "econo",
		Change:   pinned(ModeEcono, -1),
		Preserve: PreserveHumidity,
	},
	"pollen": {
		Name:     "pollen",
		Change:   pinned(ModePollen, -1),
		Preserve: PreserveHumidity,
	},
	"moist": {
		Name:   "moist",
		Change: pinned(ModeMoist, HumidityAuto),
	},
	"circulator": {
		Name:     "circulator",
		Change:   pinned(ModeCirculator, -1),
		Preserve: PreserveHumidity,
	},
}

// pinned powers the unit on with automatic fan speed. A negative humidity
// leaves the humidity target unset.
func pinned(mode Mode, humidity Humidity) ControlChange {
	change := ControlChange{
		Power:     Ptr(PowerOn),
		Mode:      Ptr(mode),
		AirVolume: Ptr(AirVolumeAutofan),
	}
	if humidity >= 0 {
		change.Humidity = Ptr(humidity)
	}
	return change
}

// Presets returns the preset names in alphabetical order.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupPreset resolves a preset by name, case-insensitively.
func LookupPreset(name string) (Preset, error) {
	preset, ok := presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Preset{}, &ValidationError{Field: "preset", Value: name}
	}
	return preset, nil
}

// ApplyPreset switches the unit to the named preset.
func (c *Client) ApplyPreset(ctx context.Context, name string) (ControlResult, error) {
	preset, err := LookupPreset(name)
	if err != nil {
		return ControlResult{}, err
	}
	return c.UpdateControl(ctx, preset.Change, preset.Preserve)
}

func (c *Client) PowerOn(ctx context.Context) (ControlResult, error) {
	return c.SetPower(ctx, PowerOn)
}

func (c *Client) PowerOff(ctx context.Context) (ControlResult, error) {
	return c.SetPower(ctx, PowerOff)
}

// SetPower sends only the power flag; the unit keeps every other setting.
func (c *Client) SetPower(ctx context.Context, power Power) (ControlResult, error) {
	return c.SetControlInfo(ctx, ControlChange{Power: &power})
}

func (c *Client) SetSmartMode(ctx context.Context) (ControlResult, error) {
	return c.ApplyPreset(ctx, "smart")
}

func (c *Client) SetAutofanMode(ctx context.Context) (ControlResult, error) {
	return c.ApplyPreset(ctx, "autofan")
}

func (c *Client) SetEconoMode(ctx context.Context) (ControlResult, error) {
	return c.ApplyPreset(ctx, "econo")
}

func (c *Client) SetPollenMode(ctx context.Context) (ControlResult, error) {
	return c.ApplyPreset(ctx, "pollen")
}

func (c *Client) SetMoistMode(ctx context.Context) (ControlResult, error) {
	return c.ApplyPreset(ctx, "moist")
}

func (c *Client) SetCirculatorMode(ctx context.Context) (ControlResult, error) {
	return c.ApplyPreset(ctx, "circulator")
}

// SetAirVolume sets a manual fan speed. Manual speeds only apply in autofan
// mode, so the mode is switched to autofan; power and humidity are kept.
func (c *Client) SetAirVolume(ctx context.Context, volume AirVolume) (ControlResult, error) {
	change := ControlChange{Mode: Ptr(ModeAutofan), AirVolume: &volume}
	return c.UpdateControl(ctx, change, PreservePower|PreserveHumidity)
}

// SetHumidity changes the humidity target and keeps everything else.
func (c *Client) SetHumidity(ctx context.Context, humidity Humidity) (ControlResult, error) {
	return c.UpdateControl(ctx, ControlChange{Humidity: &humidity}, PreserveAll)
}

// Apply runs a single named control action. It backs the HTTP and MQTT
// command surfaces.
func (c *Client) Apply(ctx context.Context, field, value string) (ControlResult, error) {
	switch strings.ToLower(field) {
	case "pow", "power":
		power, err := ParsePower(value)
		if err != nil {
			return ControlResult{}, err
		}
		return c.SetPower(ctx, power)
	case "mode", "preset":
		if mode, err := ParseMode(value); err == nil {
			value = mode.String()
		}
		return c.ApplyPreset(ctx, value)
	case "airvol", "air_volume":
		volume, err := ParseAirVolume(value)
		if err != nil {
			return ControlResult{}, err
		}
		return c.SetAirVolume(ctx, volume)
	case "humd", "humidity":
		humidity, err := ParseHumidity(value)
		if err != nil {
			return ControlResult{}, err
		}
		return c.SetHumidity(ctx, humidity)
	default:
		return ControlResult{}, &ValidationError{Field: "field", Value: field}
	}
}
