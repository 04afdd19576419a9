package poi

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// BeamCount returns the number of beams implied by the frame's angle bounds.
// The ranges and intensities must hold at least that many samples.
func (f Frame) BeamCount() (int, error) {
	if math.IsNaN(f.AngleIncrement) || f.AngleIncrement <= 0 {
		return 0, fmt.Errorf("%w: angle increment must be positive, got %v", ErrInvalidFrame, f.AngleIncrement)
	}

	n := math.Floor((f.AngleMax - f.AngleMin) / f.AngleIncrement)
	switch {
	case math.IsNaN(n) || math.IsInf(n, 0):
		return 0, fmt.Errorf("%w: no beam count for angles [%v, %v] step %v",
			ErrInvalidFrame, f.AngleMin, f.AngleMax, f.AngleIncrement)
	case n <= 0:
		return 0, nil
	case n > float64(len(f.Ranges)):
		return 0, fmt.Errorf("%w: angles imply %v beams, got %d ranges", ErrInvalidFrame, n, len(f.Ranges))
	case n > float64(len(f.Intensities)):
		return 0, fmt.Errorf("%w: angles imply %v beams, got %d intensities", ErrInvalidFrame, n, len(f.Intensities))
	}
	return int(n), nil
}

// inRange reports whether beam i lies within the sensor's advertised range.
// NaN and infinite readings never do.
func (f Frame) inRange(i int) bool {
	r := f.Ranges[i]
	return r >= f.RangeMin && r <= f.RangeMax
}

// FindBestWindow searches f for the run of cfg.WindowSize beams with the
// highest summed intensity. A window only qualifies when every beam is in
// range and its sum exceeds cfg.Threshold. On equal sums the lowest index
// wins. found is false when no window qualifies.
func FindBestWindow(f Frame, cfg Config) (best Window, found bool, err error) {
	if err := cfg.Validate(); err != nil {
		return Window{}, false, err
	}

	n, err := f.BeamCount()
	if err != nil {
		return Window{}, false, err
	}

	for i := 0; i+cfg.WindowSize <= n; i++ {
		if !f.windowInRange(i, cfg.WindowSize) {
			continue
		}

		score := floats.Sum(f.Intensities[i : i+cfg.WindowSize])
		if score > cfg.Threshold && (!found || score > best.Score) {
			best = Window{Index: i, Score: score}
			found = true
		}
	}
	return best, found, nil
}

func (f Frame) windowInRange(start, size int) bool {
	for i := start; i < start+size; i++ {
		if !f.inRange(i) {
			return false
		}
	}
	return true
}
