// Package poi detects points of interest in a planar laser scan by their
// reflected intensity, assuming a marker returns brighter than the background.
package poi

import (
	"errors"
	"fmt"
)

const (
	// DefaultWindowSize is the number of consecutive beams summed per candidate.
	DefaultWindowSize = 4

	// DefaultThreshold is the summed intensity a window must exceed to be reported.
	DefaultThreshold = 90
)

// ErrInvalidFrame is returned when the scan geometry cannot be trusted.
var ErrInvalidFrame = errors.New("invalid frame")

// Frame is a single planar scan. Ranges and Intensities are aligned by index.
type Frame struct {
	AngleMin       float64   // Start angle of the scan [rad].
	AngleMax       float64   // End angle of the scan [rad].
	AngleIncrement float64   // Angular distance between beams [rad].
	RangeMin       float64   // Minimum valid range [m].
	RangeMax       float64   // Maximum valid range [m].
	Ranges         []float64 // Range data [m].
	Intensities    []float64 // Intensity data [device-specific units].
}

// Window is a run of consecutive beams starting at Index.
type Window struct {
	Index int
	Score float64 // Sum of the window's intensities.
}

func (w Window) String() string {
	return fmt.Sprintf("intensity[%d]: %g", w.Index, w.Score)
}
