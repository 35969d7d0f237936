package types

import "time"

// StationKind is the instrument class of a station
type StationKind string

const (
	StationTide      StationKind = "tide"
	StationWeather   StationKind = "weather"
	StationPollution StationKind = "pollution"
)

// Valid reports whether k is a known station kind
func (k StationKind) Valid() bool {
	switch k {
	case StationTide, StationWeather, StationPollution:
		return true
	}
	return false
}

// Station is a monitoring site. It is only read during evaluation. The
// embedded Point puts lat and lng at the top level of the JSON object.
type Station struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Kind StationKind `json:"type"`
	Point
	Meta map[string]interface{} `json:"meta,omitempty"`
}

// Metrics holds the optional sensor values of a reading. A nil field means
// the sensor did not report, which is different from a zero value.
type Metrics struct {
	TideM        *float64 `json:"tide_m,omitempty"`
	WindMPS      *float64 `json:"wind_mps,omitempty"`
	RainMM       *float64 `json:"rain_mm,omitempty"`
	SalinityPPT  *float64 `json:"salinity_ppt,omitempty"`
	TurbidityNTU *float64 `json:"turbidity_NTU,omitempty"`
}

// Reading is a timestamped set of metrics from one station
type Reading struct {
	StationID string    `json:"station_id"`
	Timestamp time.Time `json:"ts"`
	Metrics   Metrics   `json:"metrics"`
}

// Float returns a pointer to v, for building readings
func Float(v float64) *float64 {
	return &v
}
