// Package detector runs the intensity POI scanner on incoming laser scans and
// hands each result to a set of reporters.
package detector

import (
	"fmt"

	"laserpoi/msgs/sensor_msgs"
	"laserpoi/poi"
)

// Reporter receives the outcome of every scan handled by a Detector.
// Exactly one method is called per scan.
type Reporter interface {
	// Found is called when a window exceeded the threshold.
	Found(seq uint32, w poi.Window)
	// NotFound is called when the scan was valid but nothing qualified.
	NotFound(seq uint32)
	// Rejected is called when the scan geometry was malformed.
	Rejected(seq uint32, err error)
}

// Detector scans one frame per call. It keeps no state between frames.
type Detector struct {
	cfg       poi.Config
	reporters []Reporter
}

// New returns a Detector for cfg.
func New(cfg poi.Config, reporters ...Reporter) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("scanner config: %w", err)
	}
	return &Detector{cfg: cfg, reporters: reporters}, nil
}

// Config returns the scanner configuration in use.
func (d *Detector) Config() poi.Config {
	return d.cfg
}

// HandleScan scans msg and reports the result. The returned error is the
// rejection reason, if any; a scan without a POI is not an error.
func (d *Detector) HandleScan(msg *sensor_msgs.LaserScan) error {
	if msg == nil {
		err := fmt.Errorf("%w: nil scan", poi.ErrInvalidFrame)
		d.each(func(r Reporter) { r.Rejected(0, err) })
		return err
	}

	seq := msg.Header.Seq
	w, found, err := poi.FindBestWindow(FrameFromScan(msg), d.cfg)
	switch {
	case err != nil:
		d.each(func(r Reporter) { r.Rejected(seq, err) })
		return err
	case found:
		d.each(func(r Reporter) { r.Found(seq, w) })
	default:
		d.each(func(r Reporter) { r.NotFound(seq) })
	}
	return nil
}

func (d *Detector) each(fn func(Reporter)) {
	for _, r := range d.reporters {
		fn(r)
	}
}

// FrameFromScan converts a ROS LaserScan to a scanner frame.
func FrameFromScan(msg *sensor_msgs.LaserScan) poi.Frame {
	return poi.Frame{
		AngleMin:       float64(msg.AngleMin),
		AngleMax:       float64(msg.AngleMax),
		AngleIncrement: float64(msg.AngleIncrement),
		RangeMin:       float64(msg.RangeMin),
		RangeMax:       float64(msg.RangeMax),
		Ranges:         toFloat64s(msg.Ranges),
		Intensities:    toFloat64s(msg.Intensities),
	}
}

func toFloat64s(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}

// ScannerConfig builds the scanner configuration for a host binary: the JSON
// file at path when set, otherwise the defaults, then a positive window and a
// non-negative threshold override the result.
func ScannerConfig(path string, window int, threshold float64) (poi.Config, error) {
	cfg := poi.DefaultConfig()
	if path != "" {
		var err error
		if cfg, err = poi.LoadConfig(path); err != nil {
			return poi.Config{}, err
		}
	}
	if window > 0 {
		cfg.WindowSize = window
	}
	if threshold >= 0 {
		cfg.Threshold = threshold
	}
	return cfg, cfg.Validate()
}
