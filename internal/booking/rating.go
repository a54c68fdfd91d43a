package booking

import "math"

type Rating struct {
	Average float64
	Total   int
}

// RecomputeRating averages review scores to one decimal place.
func RecomputeRating(scores []int) Rating {
	if len(scores) == 0 {
		return Rating{}
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))
	return Rating{Average: math.Round(avg*10) / 10, Total: len(scores)}
}
