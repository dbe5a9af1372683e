package domain

import (
	"bytes"
	"encoding/csv"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"
)

// FlowFeed is an ordered, time-ascending sequence of realtime samples for
// one station, plus a count of rows skipped during parsing. Feeds are
// ephemeral: they live only for the duration of an ingestion or query cycle.
type FlowFeed struct {
	Readings []FlowReading
	Skipped  int
}

// Empty reports whether the feed holds no readings.
func (f FlowFeed) Empty() bool { return len(f.Readings) == 0 }

// Latest returns the most recent reading in the feed.
func (f FlowFeed) Latest() (FlowReading, bool) {
	if f.Empty() {
		return FlowReading{}, false
	}
	return f.Readings[len(f.Readings)-1], true
}

// Oldest returns the earliest reading in the feed.
func (f FlowFeed) Oldest() (FlowReading, bool) {
	if f.Empty() {
		return FlowReading{}, false
	}
	return f.Readings[0], true
}

// Trend classifies the net level direction across the retrieved window,
// comparing the oldest reading against the latest rather than the last two
// samples.
func (f FlowFeed) Trend() TrendSignal {
	oldest, ok := f.Oldest()
	if !ok {
		return TrendStable
	}
	latest, _ := f.Latest()
	return ClassifyTrend(oldest.Level, latest.Level)
}

// ParseFlowFeed parses the provider's delimited realtime export: a header
// row followed by one row per sample, with columns including a timestamp,
// level, and discharge. Rows that fail to parse a required field are skipped
// and counted, never fatal; rows carrying neither measurement are dropped.
// An empty or entirely unparseable payload yields an empty feed; the caller
// decides whether that means "no data available".
func ParseFlowFeed(payload []byte) FlowFeed {
	r := csv.NewReader(bytes.NewReader(payload))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return FlowFeed{}
	}
	cols := indexColumns(header)
	if cols.timestamp < 0 {
		return FlowFeed{}
	}

	var feed FlowFeed
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			feed.Skipped++
			continue
		}

		reading, ok := parseRow(row, cols)
		if !ok {
			feed.Skipped++
			continue
		}
		feed.Readings = append(feed.Readings, reading)
	}

	sort.Slice(feed.Readings, func(i, j int) bool {
		return feed.Readings[i].Timestamp.Before(feed.Readings[j].Timestamp)
	})
	return feed
}

// columnIndex maps the columns of interest to their positions in the header.
type columnIndex struct {
	timestamp int
	level     int
	discharge int
}

func indexColumns(header []string) columnIndex {
	cols := columnIndex{timestamp: -1, level: -1, discharge: -1}
	for i, name := range header {
		switch strings.ToUpper(strings.TrimSpace(name)) {
		case "DATETIME", "DATE":
			if cols.timestamp < 0 {
				cols.timestamp = i
			}
		case "LEVEL":
			cols.level = i
		case "DISCHARGE":
			cols.discharge = i
		}
	}
	return cols
}

func parseRow(row []string, cols columnIndex) (FlowReading, bool) {
	if cols.timestamp >= len(row) {
		return FlowReading{}, false
	}
	ts, err := parseTimestamp(row[cols.timestamp])
	if err != nil {
		return FlowReading{}, false
	}

	reading := FlowReading{Timestamp: ts}

	level, ok := parseOptionalFloat(row, cols.level)
	if !ok {
		return FlowReading{}, false
	}
	discharge, ok := parseOptionalFloat(row, cols.discharge)
	if !ok {
		return FlowReading{}, false
	}
	reading.Level = level
	reading.Discharge = discharge

	// A sample with neither measurement carries no information.
	if reading.Level == nil && reading.Discharge == nil {
		return FlowReading{}, false
	}
	return reading, true
}

// parseOptionalFloat reads a measurement column. Absent column or empty cell
// is a valid nil measurement; a present but unparseable value is not.
func parseOptionalFloat(row []string, idx int) (*float64, bool) {
	if idx < 0 || idx >= len(row) {
		return nil, true
	}
	s := strings.TrimSpace(row[idx])
	if s == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	ts, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return ts.UTC(), nil
	}
	ts, err = time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
