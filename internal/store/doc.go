// Package store persists station documents, current readings, and
// year-bucketed daily means in Redis.
//
// Key layout:
//
//	stations:{key}                   station document (JSON)
//	stations:index                   set of registered station keys
//	stations:{key}:years             set of years with a readings bucket
//	stations:{key}:readings:{year}   hash of ISO date -> daily reading (JSON)
//	station_current:{key}            latest reading bundle (JSON), also the
//	                                 pub/sub channel for update notifications
//	ingest:runlock                   single-writer sync lease
//
// {key} is the canonical station identity, e.g. environment_canada_08GA072.
package store
