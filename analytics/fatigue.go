package analytics

const (
	// FatigueRatio is how much slower than the running mean a rep must be to count as fatigued.
	FatigueRatio = 1.3
	// FatigueMinSamples is the number of reps needed before fatigue is evaluated.
	FatigueMinSamples = 5
)

// DetectFatigue reports whether the most recent rep duration exceeds the mean
// of all earlier ones by FatigueRatio.
func DetectFatigue(durations []float64) bool {
	n := len(durations)
	if n < FatigueMinSamples {
		return false
	}

	var sum float64
	for _, d := range durations[:n-1] {
		sum += d
	}
	avg := sum / float64(n-1)

	return durations[n-1] > avg*FatigueRatio
}
