package tracking

const (
	// metValue is the metabolic equivalent for running at a moderate 7 mph.
	metValue = 7.0
	// bodyMassKg is a fixed assumed body mass.
	bodyMassKg = 80.0
	// referenceSpeedKmh is 7 mph.
	referenceSpeedKmh = 7 * 1.60934
	msToKmh           = 3.6
)

// Summarize derives display metrics from a session snapshot. Missing
// timestamps or a zero duration produce zero duration, pace and speed.
//
// Calories are a rough estimate: the distance is converted into the time it
// would take at the reference speed, so the figure ignores how long the
// session actually lasted.
func Summarize(s State) Summary {
	var duration float64
	if s.StartTime != nil && s.EndTime != nil {
		duration = float64(*s.EndTime-*s.StartTime) / 1000
	}

	var pace float64
	if duration > 0 {
		pace = s.Distance / duration
	}

	hours := (s.Distance / 1000) / referenceSpeedKmh

	return Summary{
		SessionID:   s.SessionID,
		PointCount:  len(s.Points),
		DurationSec: duration,
		DistanceM:   s.Distance,
		PaceMps:     pace,
		SpeedKmh:    pace * msToKmh,
		Calories:    metValue * bodyMassKg * hours,
	}
}
