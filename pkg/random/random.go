package random

import (
	"math"
	"math/rand"
	"time"
)

// Randomize applies ±percent randomization to value
// Example: Randomize(100, 1.0) returns value in range [99, 101]
func Randomize(value float64, percent float64) float64 {
	if percent <= 0 {
		return value
	}

	variance := value * (percent / 100.0)
	offset := (rand.Float64()*2 - 1) * variance

	result := value + offset
	return math.Round(result*100) / 100
}

// Jitter returns a random duration in [0, max). Used to spread scheduled
// portal fetches so every client in an org doesn't hit it at the same second.
func Jitter(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(max)))
}
