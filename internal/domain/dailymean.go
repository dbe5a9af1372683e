package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// DateLayout is the ISO date form used for daily-reading keys.
const DateLayout = "2006-01-02"

// DailyMeanBucket is the year-scoped aggregate persisted per station: a
// mapping from calendar date to daily mean readings. Buckets grow
// monotonically: entries are added or overwritten by date key, never
// removed, and writes merge into the existing map rather than replacing it.
type DailyMeanBucket struct {
	Year          int                     `json:"year"`
	DailyReadings map[string]DailyReading `json:"daily_readings"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

// NewDailyMeanBucket creates an empty bucket for the given year.
func NewDailyMeanBucket(year int) *DailyMeanBucket {
	return &DailyMeanBucket{
		Year:          year,
		DailyReadings: make(map[string]DailyReading),
	}
}

// Merge adds or overwrites the reading for one date. The date must be a
// valid calendar date within the bucket's year. Merging the same date twice
// is idempotent and existing entries for other dates are preserved.
func (b *DailyMeanBucket) Merge(date string, reading DailyReading) error {
	ts, err := time.Parse(DateLayout, date)
	if err != nil {
		return fmt.Errorf("merge daily reading: invalid date %q: %w", date, err)
	}
	if ts.Year() != b.Year {
		return fmt.Errorf("merge daily reading: date %q outside bucket year %d", date, b.Year)
	}
	if b.DailyReadings == nil {
		b.DailyReadings = make(map[string]DailyReading)
	}
	b.DailyReadings[date] = reading
	return nil
}

// Dates returns the bucket's dates in ascending order.
func (b *DailyMeanBucket) Dates() []string {
	dates := make([]string, 0, len(b.DailyReadings))
	for d := range b.DailyReadings {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}

// AggregateDailyMeans computes per-date mean level and discharge from a set
// of sub-daily samples, grouping by UTC calendar date. Absent measurements
// are excluded from their mean rather than counted as zero. Means are
// rounded to the provider's archive precision: levels to 3 decimals,
// discharge to 2.
func AggregateDailyMeans(readings []FlowReading) map[string]DailyReading {
	type acc struct {
		levelSum     float64
		levelN       int
		dischargeSum float64
		dischargeN   int
	}

	byDate := make(map[string]*acc)
	for _, r := range readings {
		if r.Timestamp.IsZero() {
			continue
		}
		date := r.Timestamp.UTC().Format(DateLayout)
		a := byDate[date]
		if a == nil {
			a = &acc{}
			byDate[date] = a
		}
		if r.Level != nil {
			a.levelSum += *r.Level
			a.levelN++
		}
		if r.Discharge != nil {
			a.dischargeSum += *r.Discharge
			a.dischargeN++
		}
	}

	daily := make(map[string]DailyReading, len(byDate))
	for date, a := range byDate {
		var reading DailyReading
		if a.levelN > 0 {
			reading.MeanLevel = Float(roundTo(a.levelSum/float64(a.levelN), 3))
		}
		if a.dischargeN > 0 {
			reading.MeanDischarge = Float(roundTo(a.dischargeSum/float64(a.dischargeN), 2))
		}
		if !reading.Empty() {
			daily[date] = reading
		}
	}
	return daily
}

// BucketByYear partitions date-keyed daily readings into per-year maps,
// dropping entries whose key is not a valid ISO date.
func BucketByYear(daily map[string]DailyReading) map[int]map[string]DailyReading {
	byYear := make(map[int]map[string]DailyReading)
	for date, reading := range daily {
		ts, err := time.Parse(DateLayout, date)
		if err != nil {
			continue
		}
		year := ts.Year()
		if byYear[year] == nil {
			byYear[year] = make(map[string]DailyReading)
		}
		byYear[year][date] = reading
	}
	return byYear
}

func roundTo(v float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(v*scale) / scale
}
