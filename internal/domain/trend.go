package domain

// trendThreshold is the minimum level change, in meters, that registers as
// rising or falling. Fixed at 5 cm to suppress sensor jitter; deliberately
// not configurable.
const trendThreshold = 0.05

// ClassifyTrend classifies the level change from previous to current.
// A nil previous reading (no prior data) or nil current reading is stable.
func ClassifyTrend(previous, current *float64) TrendSignal {
	if previous == nil || current == nil {
		return TrendStable
	}

	delta := *current - *previous
	switch {
	case delta > trendThreshold:
		return TrendRising
	case delta < -trendThreshold:
		return TrendFalling
	default:
		return TrendStable
	}
}
