package domain

import (
	"time"

	"github.com/riverwatch/hydrosync/internal/identity"
)

// Provider enumerates the upstream sources of station data. Immutable once
// a station is registered.
type Provider string

const (
	ProviderEnvironmentCanada Provider = "environment_canada"
	ProviderUSGS              Provider = "usgs"
	ProviderOther             Provider = "other"
)

// Valid reports whether p is a known provider.
func (p Provider) Valid() bool {
	switch p {
	case ProviderEnvironmentCanada, ProviderUSGS, ProviderOther:
		return true
	}
	return false
}

// TrendSignal is the three-way classification of recent level change.
type TrendSignal string

const (
	TrendRising  TrendSignal = "rising"
	TrendFalling TrendSignal = "falling"
	TrendStable  TrendSignal = "stable"
)

// Station is a registered hydrometric monitoring point. Stations are created
// only by the registration workflow, deactivated rather than deleted, and
// keyed by their canonical identity.
type Station struct {
	Provider     Provider       `json:"provider"`
	Code         string         `json:"station_id"`
	Name         string         `json:"station_name"`
	Country      string         `json:"country"`
	Latitude     float64        `json:"latitude"`
	Longitude    float64        `json:"longitude"`
	Active       bool           `json:"active"`
	Region       string         `json:"province_or_state,omitempty"`
	Metadata     map[string]any `json:"provider_metadata,omitempty"`
	RegisteredBy string         `json:"registered_by,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// Identity returns the station's canonical key.
func (s Station) Identity() identity.Key {
	return identity.NewKey(string(s.Provider), s.Code)
}

// FlowReading is one timestamped sample from the realtime feed. Either
// measurement may be absent; nil is distinct from zero.
type FlowReading struct {
	Timestamp time.Time `json:"datetime"`
	Level     *float64  `json:"level,omitempty"`
	Discharge *float64  `json:"discharge,omitempty"`
}

// RawPayload is an opaque provenance container for the verbatim provider
// payload fragment that produced a reading. It is preserved for audit and
// debugging only; typed consumers must never depend on its internal shape.
type RawPayload struct {
	Source string `json:"source,omitempty"`
	Data   []byte `json:"data,omitempty"`
}

// IsZero reports whether the container carries no payload.
func (p RawPayload) IsZero() bool {
	return p.Source == "" && len(p.Data) == 0
}

// CurrentReading holds the most recent known conditions for one station.
// It is overwritten in place on every successful ingestion cycle.
type CurrentReading struct {
	Provider      Provider      `json:"provider"`
	Code          string        `json:"station_id"`
	Level         *float64      `json:"level,omitempty"`
	Discharge     *float64      `json:"discharge,omitempty"`
	Timestamp     time.Time     `json:"timestamp"`
	Trend         TrendSignal   `json:"trend"`
	LevelUnit     string        `json:"level_unit"`
	DischargeUnit string        `json:"discharge_unit"`
	UpdatedAt     time.Time     `json:"last_updated"`
	Raw           RawPayload    `json:"raw_data,omitempty"`
	Feed          []FlowReading `json:"hourly_readings,omitempty"`
}

// Measurement units used everywhere readings are persisted.
const (
	LevelUnit     = "m"
	DischargeUnit = "m3/s"
)

// DailyReading is one station-day aggregate. Either mean may be absent.
type DailyReading struct {
	MeanLevel     *float64 `json:"mean_level,omitempty"`
	MeanDischarge *float64 `json:"mean_discharge,omitempty"`
}

// Empty reports whether the reading carries no measurement at all.
func (r DailyReading) Empty() bool {
	return r.MeanLevel == nil && r.MeanDischarge == nil
}

// DailyMean is a dated daily reading, the unit returned by windowed queries.
type DailyMean struct {
	Date string `json:"date"` // YYYY-MM-DD
	DailyReading
}

// Float returns a pointer to v, for building optional measurements.
func Float(v float64) *float64 { return &v }
