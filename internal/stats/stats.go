// Package stats computes session aggregates over solve times and formats times for display.
package stats

import (
	"fmt"
	"math"
	"slices"
)

// Ao5Window is the number of most recent solves used by AverageOf5.
const Ao5Window = 5

// Best returns the fastest time, or false when times is empty.
func Best(times []int64) (int64, bool) {
	if len(times) == 0 {
		return 0, false
	}
	return slices.Min(times), true
}

// Worst returns the slowest time, or false when times is empty.
func Worst(times []int64) (int64, bool) {
	if len(times) == 0 {
		return 0, false
	}
	return slices.Max(times), true
}

// AverageOf5 averages the middle three of the last five times, dropping the
// fastest and slowest. The result is rounded to the nearest millisecond.
func AverageOf5(times []int64) (int64, bool) {
	if len(times) < Ao5Window {
		return 0, false
	}
	last := slices.Clone(times[len(times)-Ao5Window:])
	slices.Sort(last)
	var sum int64
	for _, t := range last[1 : Ao5Window-1] {
		sum += t
	}
	return int64(math.Round(float64(sum) / float64(Ao5Window-2))), true
}

// Optional is a time that may be absent.
type Optional struct {
	Value int64
	Valid bool
}

// Summary bundles the derived statistics of a session.
type Summary struct {
	Count int
	Best  Optional
	Worst Optional
	Ao5   Optional
}

// Summarize computes every aggregate over times.
func Summarize(times []int64) Summary {
	s := Summary{Count: len(times)}
	s.Best.Value, s.Best.Valid = Best(times)
	s.Worst.Value, s.Worst.Valid = Worst(times)
	s.Ao5.Value, s.Ao5.Valid = AverageOf5(times)
	return s
}

// FormatMillis renders t as M:SS.CC (t >= 1 minute) or S.CC. Non-positive
// values render as "0.00".
func FormatMillis(t int64) string {
	if t <= 0 {
		return "0.00"
	}
	return formatCentis(t / 10)
}

// FormatOptional renders an optional time, "N/A" when absent.
func FormatOptional(o Optional) string {
	if !o.Valid {
		return "N/A"
	}
	return FormatMillis(o.Value)
}

// FormatHundredths renders a WCA result given in hundredths of a second.
// Non-positive results (DNF/DNS markers) render as "N/A".
func FormatHundredths(h int64) string {
	if h <= 0 {
		return "N/A"
	}
	return formatCentis(h)
}

func formatCentis(cs int64) string {
	minutes := cs / 6000
	seconds := (cs / 100) % 60
	centis := cs % 100
	if minutes > 0 {
		return fmt.Sprintf("%d:%02d.%02d", minutes, seconds, centis)
	}
	return fmt.Sprintf("%d.%02d", seconds, centis)
}
