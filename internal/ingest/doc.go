// Package ingest drives data acquisition: the historical sync engine that
// maintains year-bucketed daily means for every active station, and the
// realtime updater that refreshes current conditions.
//
// A sync run holds a store-backed lease so only one writer mutates buckets
// at a time. Stations are processed by a bounded worker pool; one station
// failing never aborts the run.
package ingest
