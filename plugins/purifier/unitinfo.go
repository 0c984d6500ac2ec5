package purifier

import (
	"strconv"
)

const (
	controlBlockKey = "ctrl_info"
	endpointUnit    = "get_unit_info"
)

// UnitInfo is a snapshot of the unit as reported by get_unit_info. It is
// built per request and never reused.
type UnitInfo struct {
	Result  string      `json:"result,omitempty"`
	Name    string      `json:"name,omitempty"`
	Control ControlInfo `json:"control"`
	Sensors SensorInfo  `json:"sensors"`

	// Raw is the decoded response the fields above were read from.
	Raw *RawKeyValueMap `json:"-"`
}

// SensorInfo holds the read-only readings the unit reports. Readings the
// unit did not send are nil.
type SensorInfo struct {
	TemperatureCelsius *float64 `json:"temperature_celsius,omitempty"`
	HumidityPercent    *float64 `json:"humidity_percent,omitempty"`
	PM25               *float64 `json:"pm25,omitempty"`
	Dust               *float64 `json:"dust,omitempty"`
	Odor               *float64 `json:"odor,omitempty"`
	ErrorCode          string   `json:"error_code,omitempty"`
}

var sensorKeys = struct {
	temperature, humidity, pm25, dust, odor, errorCode string
}{
	temperature: "htemp",
	humidity:    "hhum",
	pm25:        "pm25",
	dust:        "dust",
	odor:        "odor",
	errorCode:   "err",
}

// unitInfoFromRaw maps a nested-mode decode of get_unit_info.
func unitInfoFromRaw(raw *RawKeyValueMap) (UnitInfo, error) {
	ctrl, ok := raw.Map(controlBlockKey)
	if !ok {
		return UnitInfo{}, &ProtocolError{
			Endpoint: endpointUnit,
			Missing:  []string{controlBlockKey},
		}
	}

	control, err := controlInfoFromRaw(endpointUnit, ctrl)
	if err != nil {
		return UnitInfo{}, err
	}

	info := UnitInfo{Control: control, Raw: raw}
	info.Result, _ = raw.String("ret")
	if name, ok := lookupScalar(raw, "name"); ok {
		info.Name = percentDecode(name)
	}
	info.Sensors = SensorInfo{
		TemperatureCelsius: lookupFloat(raw, sensorKeys.temperature),
		HumidityPercent:    lookupFloat(raw, sensorKeys.humidity),
		PM25:               lookupFloat(raw, sensorKeys.pm25),
		Dust:               lookupFloat(raw, sensorKeys.dust),
		Odor:               lookupFloat(raw, sensorKeys.odor),
	}
	info.Sensors.ErrorCode, _ = lookupScalar(raw, sensorKeys.errorCode)
	return info, nil
}

// controlInfoFromRaw reads the control vector. pow, mode, airvol and humd are
// required; values outside their domains are protocol errors.
func controlInfoFromRaw(endpoint string, m *RawKeyValueMap) (ControlInfo, error) {
	var missing []string
	required := func(key string) string {
		value, ok := m.String(key)
		if !ok || value == "" {
			missing = append(missing, key)
		}
		return value
	}
	pow := required("pow")
	mode := required("mode")
	airvol := required("airvol")
	humd := required("humd")
	if len(missing) > 0 {
		return ControlInfo{}, &ProtocolError{Endpoint: endpoint, Missing: missing}
	}

	var (
		info ControlInfo
		err  error
	)
	if info.Power, err = ParsePower(pow); err != nil {
		return ControlInfo{}, protocolValueError(endpoint, err)
	}
	if info.Mode, err = ParseMode(mode); err != nil {
		return ControlInfo{}, protocolValueError(endpoint, err)
	}
	if info.AirVolume, err = ParseAirVolume(airvol); err != nil {
		return ControlInfo{}, protocolValueError(endpoint, err)
	}
	if info.Humidity, err = ParseHumidity(humd); err != nil {
		return ControlInfo{}, protocolValueError(endpoint, err)
	}
	if sub, ok := m.String("acOpeMode"); ok {
		if n, err := strconv.Atoi(sub); err == nil {
			info.OperationSubMode = &n
		}
	}
	return info, nil
}

func protocolValueError(endpoint string, err error) error {
	return &ProtocolError{Endpoint: endpoint, Reason: err.Error()}
}

// lookupScalar finds key at the top level first, then in nested records in
// response order.
func lookupScalar(raw *RawKeyValueMap, key string) (string, bool) {
	if value, ok := raw.String(key); ok {
		return value, true
	}
	for _, k := range raw.Keys() {
		nested, ok := raw.Map(k)
		if !ok {
			continue
		}
		if value, ok := nested.String(key); ok {
			return value, true
		}
	}
	return "", false
}

func lookupFloat(raw *RawKeyValueMap, key string) *float64 {
	value, ok := lookupScalar(raw, key)
	if !ok || value == "" || value == "-" || value == "--" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
