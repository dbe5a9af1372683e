// Package domain models hydrometric station data and the pure
// transformations the ingestion pipeline applies to it.
//
// # Data Source
//
// Readings originate from a national hydrometric web service exposing two
// collections: a near-real-time collection (sub-daily samples with level and
// discharge per station) and a daily-mean collection (one official averaged
// record per station-day, sourced from the long-term archive). The realtime
// collection is also available as a compact CSV export, one row per sample.
//
// # Units
//
// Level is water surface elevation in meters. Discharge is volumetric flow
// in cubic meters per second. Both are optional per sample: a station may
// report either or both, and absence is distinct from zero.
//
// # Identifier conventions
//
// Stations are keyed by the canonical form defined in the identity package.
// Daily-mean records carry a provider identifier of the form
// "{code}.{YYYY-MM-DD}"; records that deviate from it are treated as
// malformed and dropped.
//
// # Trend
//
// Trend is a three-way classification (rising, falling, stable) of level
// change against a fixed 5 cm threshold chosen to suppress sensor jitter.
// It is always derived from the readings it annotates, never stored
// independently.
package domain
