package purifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Power is the on/off state of the unit.
type Power int

const (
	PowerOff Power = 0
	PowerOn  Power = 1
)

// Mode is the operating mode of the unit.
type Mode int

const (
	ModeAutofan    Mode = 0
	ModeSmart      Mode = 1
	ModeEcono      Mode = 2
	ModePollen     Mode = 3
	ModeMoist      Mode = 4
	ModeCirculator Mode = 5
)

// AirVolume is the fan speed. There is no level 4.
type AirVolume int

const (
	AirVolumeAutofan  AirVolume = 0
	AirVolumeQuiet    AirVolume = 1
	AirVolumeLow      AirVolume = 2
	AirVolumeStandard AirVolume = 3
	AirVolumeTurbo    AirVolume = 5
)

// Humidity is the humidifier target.
type Humidity int

const (
	HumidityOff      Humidity = 0
	HumidityLow      Humidity = 1
	HumidityStandard Humidity = 2
	HumidityHigh     Humidity = 3
	HumidityAuto     Humidity = 4
)

var powerNames = map[Power]string{
	PowerOff: "off",
	PowerOn:  "on",
}

var modeNames = map[Mode]string{
	ModeAutofan:    "autofan",
	ModeSmart:      "smart",
	ModeEcono:      "econo",
	ModePollen:     "pollen",
	ModeMoist:      "moist",
	ModeCirculator: "circulator",
}

var airVolumeNames = map[AirVolume]string{
	AirVolumeAutofan:  "autofan",
	AirVolumeQuiet:    "quiet",
	AirVolumeLow:      "low",
	AirVolumeStandard: "standard",
	AirVolumeTurbo:    "turbo",
}

var humidityNames = map[Humidity]string{
	HumidityOff:      "off",
	HumidityLow:      "low",
	HumidityStandard: "standard",
	HumidityHigh:     "high",
	HumidityAuto:     "auto",
}

func (p Power) Valid() bool {
	_, ok := powerNames[p]
	return ok
}

func (m Mode) Valid() bool {
	_, ok := modeNames[m]
	return ok
}

func (a AirVolume) Valid() bool {
	_, ok := airVolumeNames[a]
	return ok
}

func (h Humidity) Valid() bool {
	_, ok := humidityNames[h]
	return ok
}

func (p Power) String() string { return enumString(powerNames, p) }

func (m Mode) String() string { return enumString(modeNames, m) }

func (a AirVolume) String() string { return enumString(airVolumeNames, a) }

func (h Humidity) String() string { return enumString(humidityNames, h) }

// ParsePower accepts a name ("on") or the wire value ("1").
func ParsePower(input string) (Power, error) {
	return parseEnum("pow", powerNames, input)
}

// ParseMode accepts a name ("smart") or the wire value ("1").
func ParseMode(input string) (Mode, error) {
	return parseEnum("mode", modeNames, input)
}

// ParseAirVolume accepts a name ("turbo") or the wire value ("5").
func ParseAirVolume(input string) (AirVolume, error) {
	return parseEnum("airvol", airVolumeNames, input)
}

// ParseHumidity accepts a name ("auto") or the wire value ("4").
func ParseHumidity(input string) (Humidity, error) {
	return parseEnum("humd", humidityNames, input)
}

func enumString[T ~int](names map[T]string, value T) string {
	if name, ok := names[value]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(value))
}

func parseEnum[T ~int](field string, names map[T]string, input string) (T, error) {
	needle := strings.ToLower(strings.TrimSpace(input))
	if n, err := strconv.Atoi(needle); err == nil {
		if _, ok := names[T(n)]; ok {
			return T(n), nil
		}
		return 0, &ValidationError{Field: field, Value: input}
	}
	for value, name := range names {
		if name == needle {
			return value, nil
		}
	}
	return 0, &ValidationError{Field: field, Value: input}
}

// ControlInfo is the commandable state of the unit.
type ControlInfo struct {
	Power            Power     `json:"power"`
	Mode             Mode      `json:"mode"`
	AirVolume        AirVolume `json:"air_volume"`
	Humidity         Humidity  `json:"humidity"`
	OperationSubMode *int      `json:"operation_sub_mode,omitempty"`
}

// ControlChange is a partial control vector. Nil fields are not sent.
type ControlChange struct {
	Power            *Power     `json:"power,omitempty"`
	Mode             *Mode      `json:"mode,omitempty"`
	AirVolume        *AirVolume `json:"air_volume,omitempty"`
	Humidity         *Humidity  `json:"humidity,omitempty"`
	OperationSubMode *int       `json:"operation_sub_mode,omitempty"`
}

// Validate rejects values outside the enumerated domains.
func (c ControlChange) Validate() error {
	if c.Power != nil && !c.Power.Valid() {
		return &ValidationError{Field: "pow", Value: strconv.Itoa(int(*c.Power))}
	}
	if c.Mode != nil && !c.Mode.Valid() {
		return &ValidationError{Field: "mode", Value: strconv.Itoa(int(*c.Mode))}
	}
	if c.AirVolume != nil && !c.AirVolume.Valid() {
		return &ValidationError{Field: "airvol", Value: strconv.Itoa(int(*c.AirVolume))}
	}
	if c.Humidity != nil && !c.Humidity.Valid() {
		return &ValidationError{Field: "humd", Value: strconv.Itoa(int(*c.Humidity))}
	}
	return nil
}

// overlay returns base with every non-nil field of c applied.
func (c ControlChange) overlay(base ControlChange) ControlChange {
	out := base
	if c.Power != nil {
		out.Power = c.Power
	}
	if c.Mode != nil {
		out.Mode = c.Mode
	}
	if c.AirVolume != nil {
		out.AirVolume = c.AirVolume
	}
	if c.Humidity != nil {
		out.Humidity = c.Humidity
	}
	if c.OperationSubMode != nil {
		out.OperationSubMode = c.OperationSubMode
	}
	return out
}

// Ptr returns a pointer to v, for building a ControlChange inline.
func Ptr[T any](v T) *T {
	return &v
}
