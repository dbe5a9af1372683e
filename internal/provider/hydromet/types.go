package hydromet

import (
	"encoding/json"
	"time"
)

// featureCollection mirrors the provider's GeoJSON-style response envelope.
// Feature properties vary per collection, so each feature is kept raw and
// decoded per endpoint.
type featureCollection struct {
	Features []json.RawMessage `json:"features"`
}

// realtimeProperties is the per-sample record of the realtime collection.
type realtimeFeature struct {
	Properties realtimeProperties `json:"properties"`
}

type realtimeProperties struct {
	StationNumber string   `json:"STATION_NUMBER"`
	StationName   string   `json:"STATION_NAME"`
	Datetime      string   `json:"DATETIME"`
	Level         *float64 `json:"LEVEL"`
	Discharge     *float64 `json:"DISCHARGE"`
}

// dailyMeanFeature is the per-station-day record of the daily-mean
// collection. Identifier carries the "{code}.{YYYY-MM-DD}" form.
type dailyMeanFeature struct {
	Properties dailyMeanProperties `json:"properties"`
}

type dailyMeanProperties struct {
	Identifier    string   `json:"IDENTIFIER"`
	StationNumber string   `json:"STATION_NUMBER"`
	Date          string   `json:"DATE"`
	Level         *float64 `json:"LEVEL"`
	Discharge     *float64 `json:"DISCHARGE"`
}

// stationFeature is the station-catalog record.
type stationFeature struct {
	Properties stationProperties `json:"properties"`
}

type stationProperties struct {
	StationNumber string `json:"STATION_NUMBER"`
	StationName   string `json:"STATION_NAME"`
	Province      string `json:"PROV_TERR_STATE_LOC"`
	Status        string `json:"STATUS_EN"`
}

// LatestSample is one station's most recent realtime sample from the bulk
// endpoint, with the raw feature preserved for provenance.
type LatestSample struct {
	Code      string
	Timestamp time.Time
	Level     *float64
	Discharge *float64
	Raw       json.RawMessage
}

// StationInfo is the catalog entry returned by a station lookup.
type StationInfo struct {
	Code     string
	Name     string
	Province string
	Status   string
}
