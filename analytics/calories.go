package analytics

// Calories estimates the energy in kcal spent over durationSec of an exercise
// with the given MET value.
func Calories(met, bodyWeightKg, durationSec float64) float64 {
	return met * bodyWeightKg * (durationSec / 3600)
}
