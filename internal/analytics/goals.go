package analytics

import (
	"math"

	"tradestein/internal/models"
)

// GoalStats summarises a goal list.
type GoalStats struct {
	Total       int `json:"total"`
	Completed   int `json:"completed"`
	AvgProgress int `json:"avgProgress"`
}

// SummarizeGoals counts goals and averages their progress, rounded.
func SummarizeGoals(goals []models.Goal) GoalStats {
	stats := GoalStats{Total: len(goals)}
	if stats.Total == 0 {
		return stats
	}
	var sum int
	for _, g := range goals {
		if g.Completed {
			stats.Completed++
		}
		sum += g.Progress
	}
	stats.AvgProgress = int(math.Floor(float64(sum)/float64(stats.Total) + 0.5))
	return stats
}
