package evaluator

import (
	"fmt"
	"time"

	"github.com/coastle/coastle/internal/types"
)

// Rule is one hazard check. Rules are evaluated in slice order and the first
// match wins.
type Rule struct {
	Name     string
	Kind     types.Kind
	Match    func(m types.Metrics, t types.ThresholdSet) bool
	Classify func(m types.Metrics, t types.ThresholdSet) types.Severity
	Describe func(station types.Station, reading *types.Reading, t types.ThresholdSet) (string, map[string]interface{})
}

// DefaultRules is the fixed priority order: surge, storm, pollution
var DefaultRules = []Rule{surgeRule, stormRule, pollutionRule}

var surgeRule = Rule{
	Name: "surge",
	Kind: types.KindSurge,
	Match: func(m types.Metrics, t types.ThresholdSet) bool {
		return m.TideM != nil && *m.TideM > t[types.HighTide]
	},
	Classify: func(m types.Metrics, t types.ThresholdSet) types.Severity {
		tide := *m.TideM
		midpoint := (t[types.HighTide] + t[types.StormSurge]) / 2
		switch {
		case tide > t[types.StormSurge]:
			return types.SeverityHigh
		case tide > midpoint:
			return types.SeverityMed
		default:
			return types.SeverityLow
		}
	},
	Describe: func(station types.Station, reading *types.Reading, t types.ThresholdSet) (string, map[string]interface{}) {
		return fmt.Sprintf("High tide level detected at %s", station.Name), map[string]interface{}{
			"tide_m":    *reading.Metrics.TideM,
			"threshold": t[types.HighTide],
			"timestamp": reading.Timestamp.Format(time.RFC3339),
		}
	},
}

var stormRule = Rule{
	Name: "storm",
	Kind: types.KindStorm,
	Match: func(m types.Metrics, t types.ThresholdSet) bool {
		return m.WindMPS != nil && m.RainMM != nil &&
			*m.WindMPS > t[types.WindSpeed] && *m.RainMM > t[types.Rainfall]
	},
	Classify: func(m types.Metrics, t types.ThresholdSet) types.Severity {
		wind, rain := *m.WindMPS, *m.RainMM
		windLimit, rainLimit := t[types.WindSpeed], t[types.Rainfall]
		switch {
		case wind > windLimit*1.7 && rain > rainLimit*2.5:
			return types.SeverityHigh
		case wind > windLimit*1.3 && rain > rainLimit*1.5:
			return types.SeverityMed
		default:
			return types.SeverityLow
		}
	},
	Describe: func(station types.Station, reading *types.Reading, t types.ThresholdSet) (string, map[string]interface{}) {
		return fmt.Sprintf("Storm conditions detected at %s", station.Name), map[string]interface{}{
			"wind_mps":       *reading.Metrics.WindMPS,
			"rain_mm":        *reading.Metrics.RainMM,
			"wind_threshold": t[types.WindSpeed],
			"rain_threshold": t[types.Rainfall],
			"timestamp":      reading.Timestamp.Format(time.RFC3339),
		}
	},
}

var pollutionRule = Rule{
	Name: "pollution",
	Kind: types.KindPollution,
	Match: func(m types.Metrics, t types.ThresholdSet) bool {
		return m.TurbidityNTU != nil && *m.TurbidityNTU > t[types.Turbidity]
	},
	Classify: func(m types.Metrics, t types.ThresholdSet) types.Severity {
		turbidity, limit := *m.TurbidityNTU, t[types.Turbidity]
		switch {
		case turbidity > limit*2:
			return types.SeverityHigh
		case turbidity > limit*1.4:
			return types.SeverityMed
		default:
			return types.SeverityLow
		}
	},
	Describe: func(station types.Station, reading *types.Reading, t types.ThresholdSet) (string, map[string]interface{}) {
		return fmt.Sprintf("High water turbidity detected at %s", station.Name), map[string]interface{}{
			"turbidity_ntu": *reading.Metrics.TurbidityNTU,
			"threshold":     t[types.Turbidity],
			"timestamp":     reading.Timestamp.Format(time.RFC3339),
		}
	},
}
