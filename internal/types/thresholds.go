package types

import "fmt"

// HazardKey names one numeric limit in a threshold set
type HazardKey string

const (
	HighTide        HazardKey = "HIGH_TIDE"
	StormSurge      HazardKey = "STORM_SURGE"
	CoastalFlooding HazardKey = "COASTAL_FLOODING"
	WindSpeed       HazardKey = "WIND_SPEED"
	Rainfall        HazardKey = "RAINFALL"
	Turbidity       HazardKey = "TURBIDITY"
)

// HazardKeys lists every known key in a stable order
var HazardKeys = []HazardKey{HighTide, StormSurge, CoastalFlooding, WindSpeed, Rainfall, Turbidity}

// ParseHazardKey validates a raw key
func ParseHazardKey(s string) (HazardKey, error) {
	for _, k := range HazardKeys {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown hazard key %q", s)
}

// ThresholdSet maps hazard keys to their limits
type ThresholdSet map[HazardKey]float64

// Clone returns an independent copy
func (t ThresholdSet) Clone() ThresholdSet {
	out := make(ThresholdSet, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

// ThresholdSetFromMap converts a string-keyed map, rejecting unknown keys
func ThresholdSetFromMap(m map[string]float64) (ThresholdSet, error) {
	out := make(ThresholdSet, len(m))
	for raw, v := range m {
		k, err := ParseHazardKey(raw)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
