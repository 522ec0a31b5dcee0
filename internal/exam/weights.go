package exam

import "github.com/pavelanni/examgen/internal/model"

// TotalScale is the grade a fully correct exam is worth.
const TotalScale = 20.0

// Normalize returns the per-question point value of every topic so that the
// whole exam sums to TotalScale. When the weighted question mass is not
// positive every topic is worth 1 point per question.
func Normalize(topics []model.TopicConfig) map[int64]float64 {
	var mass float64
	for _, t := range topics {
		mass += t.RelativeWeight * float64(t.NumQuestions)
	}

	points := make(map[int64]float64, len(topics))
	for _, t := range topics {
		if mass <= 0 {
			points[t.TopicID] = 1.0
			continue
		}
		points[t.TopicID] = t.RelativeWeight * (TotalScale / mass)
	}
	return points
}
