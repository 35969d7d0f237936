package types

import "time"

// Kind is the hazard category an alert represents
type Kind string

const (
	KindStorm     Kind = "storm"
	KindSurge     Kind = "surge"
	KindPollution Kind = "pollution"
)

// Severity is the three-tier banding of how far a metric exceeds its threshold
type Severity string

const (
	SeverityLow  Severity = "low"
	SeverityMed  Severity = "med"
	SeverityHigh Severity = "high"
)

// Valid reports whether k is one of the known hazard kinds
func (k Kind) Valid() bool {
	switch k {
	case KindStorm, KindSurge, KindPollution:
		return true
	}
	return false
}

// Valid reports whether s is one of the known severities
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMed, SeverityHigh:
		return true
	}
	return false
}

// Point is a geographic coordinate
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Alert represents a hazard raised for a station by a single reading
type Alert struct {
	ID           string                 `json:"id"`
	Area         string                 `json:"area"`
	Center       Point                  `json:"center"`
	Kind         Kind                   `json:"kind"`
	Severity     Severity               `json:"severity"`
	Timestamp    time.Time              `json:"ts"`
	Summary      string                 `json:"summary"`
	Details      map[string]interface{} `json:"details,omitempty"`
	Acknowledged bool                   `json:"acknowledged"`
	CreatedAt    time.Time              `json:"created_at"`
}

// SortOrder controls the ordering of alert queries by timestamp
type SortOrder int

const (
	SortNewestFirst SortOrder = iota
	SortOldestFirst
)

// AlertFilter selects alerts from a store. Nil fields match everything.
type AlertFilter struct {
	Area         *string
	Acknowledged *bool
	Since        *time.Time
}

// Matches reports whether a satisfies the filter
func (f AlertFilter) Matches(a *Alert) bool {
	if f.Area != nil && a.Area != *f.Area {
		return false
	}
	if f.Acknowledged != nil && a.Acknowledged != *f.Acknowledged {
		return false
	}
	if f.Since != nil && a.Timestamp.Before(*f.Since) {
		return false
	}
	return true
}
