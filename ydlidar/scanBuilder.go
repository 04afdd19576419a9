package ydlidar

import (
	"math"
	"time"

	"github.com/akio/rosgo/ros"

	"laserpoi/msgs/sensor_msgs"
	"laserpoi/msgs/std_msgs"
)

const deg2Rad float32 = math.Pi / 180

// ScanBuilder assembles one LaserScan per revolution from point cloud packets.
// A revolution runs from one zero packet to the next.
type ScanBuilder struct {
	FrameID  string
	RangeMin float32 // [m]
	RangeMax float32 // [m]

	// Now stamps completed scans. Defaults to time.Now.
	Now func() time.Time

	seq       uint32
	started   bool
	frequency float32
	minAngle  float32
	maxAngle  float32
	dist      []uint16
	intensity []uint16
}

// NewScanBuilder returns a ScanBuilder using the G2's measurement range.
func NewScanBuilder(frameID string) *ScanBuilder {
	b := &ScanBuilder{
		FrameID:  frameID,
		RangeMin: G2RangeMin,
		RangeMax: G2RangeMax,
		Now:      time.Now,
	}
	b.reset()
	return b
}

func (b *ScanBuilder) reset() {
	b.minAngle = 360
	b.maxAngle = 0
	b.dist = b.dist[:0]
	b.intensity = b.intensity[:0]
}

// Add consumes one packet and returns the completed scan when p starts a new
// revolution. Packets before the first zero packet and error packets are ignored.
func (b *ScanBuilder) Add(p Packet) *sensor_msgs.LaserScan {
	if p.Error != nil {
		return nil
	}

	if p.ZeroPacket {
		var scan *sensor_msgs.LaserScan
		if b.started && len(b.dist) > 0 {
			scan = b.build()
		}
		b.started = true
		b.frequency = p.ScanFrequency
		b.reset()
		return scan
	}

	if !b.started {
		return nil
	}

	// Ignore the packet straddling 360 -> 0, eg. first: 340 last: 4.
	if p.FirstAngle >= p.LastAngle {
		return nil
	}
	if b.minAngle > p.FirstAngle {
		b.minAngle = p.FirstAngle
	}
	if b.maxAngle < p.LastAngle {
		b.maxAngle = p.LastAngle
	}
	b.dist = append(b.dist, p.Distances...)
	b.intensity = append(b.intensity, p.Intensities...)
	return nil
}

func (b *ScanBuilder) build() *sensor_msgs.LaserScan {
	now := b.Now()
	scan := &sensor_msgs.LaserScan{
		Header: std_msgs.Header{
			Seq:     b.seq,
			Stamp:   ros.NewTime(uint32(now.Unix()), uint32(now.Nanosecond())),
			FrameId: b.FrameID,
		},
		AngleMin:       deg2Rad * b.minAngle,
		AngleMax:       deg2Rad * b.maxAngle,
		AngleIncrement: deg2Rad * (b.maxAngle - b.minAngle) / float32(len(b.dist)),
		RangeMin:       b.RangeMin,
		RangeMax:       b.RangeMax,
		Ranges:         make([]float32, len(b.dist)),
		Intensities:    make([]float32, len(b.intensity)),
	}
	if b.frequency > 0 {
		scan.ScanTime = 1 / b.frequency
		scan.TimeIncrement = scan.ScanTime / float32(len(b.dist))
	}

	// Convert from mm to m.
	for i, d := range b.dist {
		scan.Ranges[i] = float32(d) / 1000
	}
	for i, v := range b.intensity {
		scan.Intensities[i] = float32(v)
	}

	b.seq++
	return scan
}
