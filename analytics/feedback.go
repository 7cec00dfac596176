package analytics

import (
	"github.com/ElectrobladeIsADev/fitnessguide/exercise"
	"github.com/ElectrobladeIsADev/fitnessguide/pose"
)

// EvaluateForm walks the profile's rule table and returns the first matching
// message, or "" when no rule matches. A rule whose auxiliary angle cannot be
// computed this frame does not match.
func EvaluateForm(
	profile exercise.Profile,
	phase exercise.Phase,
	angle float64,
	minAngle, maxAngle float64,
	frame *pose.LandmarkFrame,
) string {
	for _, rule := range profile.Rules {
		if rule.Phase != phase {
			continue
		}

		var matched bool
		switch rule.Check {
		case exercise.AngleAboveMin:
			matched = angle > minAngle
		case exercise.AngleBelowMax:
			matched = angle < maxAngle
		case exercise.AuxBelow:
			if frame == nil {
				continue
			}
			aux, err := frame.Angle(rule.Aux)
			matched = err == nil && aux < rule.Limit
		}

		if matched {
			return rule.Message
		}
	}
	return ""
}
