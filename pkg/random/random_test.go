package random

import (
	"testing"
	"time"
)

func TestRandomize(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		percent float64
		min     float64
		max     float64
	}{
		{"1 percent of 100", 100, 1.0, 99, 101},
		{"10 percent of 480", 480, 10.0, 432, 528},
		{"Zero percent", 100, 0, 100, 100},
		{"Negative percent", 100, -5, 100, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 100; i++ {
				got := Randomize(tt.value, tt.percent)
				if got < tt.min || got > tt.max {
					t.Fatalf("Randomize(%v, %v) = %v, want within [%v, %v]",
						tt.value, tt.percent, got, tt.min, tt.max)
				}
			}
		})
	}
}

func TestJitter(t *testing.T) {
	max := 5 * time.Minute

	for i := 0; i < 100; i++ {
		got := Jitter(max)
		if got < 0 || got >= max {
			t.Fatalf("Jitter(%v) = %v, want within [0, %v)", max, got, max)
		}
	}

	if got := Jitter(0); got != 0 {
		t.Errorf("Jitter(0) = %v, want 0", got)
	}
	if got := Jitter(-time.Second); got != 0 {
		t.Errorf("Jitter(negative) = %v, want 0", got)
	}
}
