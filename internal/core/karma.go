package core

import "math"

const (
	karmaBase             = 100.0
	gapFillerBonus        = 50.0
	gapFillerLimitMinutes = 45
)

// Score maps a user's accumulated print hours and a job's estimated duration
// to a priority score. Light and new users score high; heavy recent users
// decay toward zero. Short jobs under 45 minutes get a flat gap-filler bonus
// so they can slip between long prints.
//
// The result is rounded to 2 decimal places and the function is pure:
// same inputs, same score. Negative inputs are a caller contract violation
// and are clamped to zero.
func Score(accumulatedHours float64, estimatedMinutes int) float64 {
	if accumulatedHours < 0 {
		accumulatedHours = 0
	}
	if estimatedMinutes < 0 {
		estimatedMinutes = 0
	}

	score := karmaBase / (accumulatedHours + 1)
	if estimatedMinutes > 0 && estimatedMinutes < gapFillerLimitMinutes {
		score += gapFillerBonus
	}

	return round2(score)
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
