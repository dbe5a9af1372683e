package store

import (
	"fmt"

	"github.com/riverwatch/hydrosync/internal/identity"
)

const (
	stationIndexKey = "stations:index"
	runLockKey      = "ingest:runlock"
)

func stationKey(key identity.Key) string {
	return fmt.Sprintf("stations:%s", key)
}

func yearSetKey(key identity.Key) string {
	return fmt.Sprintf("stations:%s:years", key)
}

func currentKey(key identity.Key) string {
	return fmt.Sprintf("station_current:%s", key)
}

func bucketKey(key identity.Key, year int) string {
	return fmt.Sprintf("stations:%s:readings:%d", key, year)
}
