// Package sensor_msgs holds the sensor_msgs ROS messages used by laserpoi, in
// the layout rosgo's gengo produces.
package sensor_msgs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/akio/rosgo/ros"

	"laserpoi/msgs/std_msgs"
)

type _MsgLaserScan struct {
	text   string
	name   string
	md5sum string
}

func (t *_MsgLaserScan) Text() string {
	return t.text
}

func (t *_MsgLaserScan) Name() string {
	return t.name
}

func (t *_MsgLaserScan) MD5Sum() string {
	return t.md5sum
}

func (t *_MsgLaserScan) NewMessage() ros.Message {
	m := new(LaserScan)
	m.Header = std_msgs.Header{}
	m.Ranges = []float32{}
	m.Intensities = []float32{}
	return m
}

var (
	MsgLaserScan = &_MsgLaserScan{
		`# Single scan from a planar laser range-finder
#
# If you have another ranging device with different behavior (e.g. a sonar
# array), please find or create a different message, since applications
# will make fairly laser-specific assumptions about this data

Header header            # timestamp in the header is the acquisition time of
                         # the first ray in the scan.
                         #
                         # in frame frame_id, angles are measured around
                         # the positive Z axis (counterclockwise, if Z is up)
                         # with zero angle being forward along the x axis

float32 angle_min        # start angle of the scan [rad]
float32 angle_max        # end angle of the scan [rad]
float32 angle_increment  # angular distance between measurements [rad]

float32 time_increment   # time between measurements [seconds] - if your scanner
                         # is moving, this will be used in interpolating position
                         # of 3d points
float32 scan_time        # time between scans [seconds]

float32 range_min        # minimum range value [m]
float32 range_max        # maximum range value [m]

float32[] ranges         # range data [m] (Note: values < range_min or > range_max should be discarded)
float32[] intensities    # intensity data [device-specific units].  If your
                         # device does not provide intensities, please leave
                         # the array empty.
`,
		"sensor_msgs/LaserScan",
		"90c7ef2dc6895d81024acba2ac42f369",
	}
)

type LaserScan struct {
	Header         std_msgs.Header `rosmsg:"header:Header"`
	AngleMin       float32         `rosmsg:"angle_min:float32"`
	AngleMax       float32         `rosmsg:"angle_max:float32"`
	AngleIncrement float32         `rosmsg:"angle_increment:float32"`
	TimeIncrement  float32         `rosmsg:"time_increment:float32"`
	ScanTime       float32         `rosmsg:"scan_time:float32"`
	RangeMin       float32         `rosmsg:"range_min:float32"`
	RangeMax       float32         `rosmsg:"range_max:float32"`
	Ranges         []float32       `rosmsg:"ranges:float32[]"`
	Intensities    []float32       `rosmsg:"intensities:float32[]"`
}

func (m *LaserScan) Type() ros.MessageType {
	return MsgLaserScan
}

func (m *LaserScan) Serialize(buf *bytes.Buffer) error {
	if err := m.Header.Serialize(buf); err != nil {
		return err
	}
	scalars := []float32{
		m.AngleMin, m.AngleMax, m.AngleIncrement,
		m.TimeIncrement, m.ScanTime,
		m.RangeMin, m.RangeMax,
	}
	if err := binary.Write(buf, binary.LittleEndian, scalars); err != nil {
		return err
	}
	if err := writeFloat32s(buf, m.Ranges); err != nil {
		return err
	}
	return writeFloat32s(buf, m.Intensities)
}

func (m *LaserScan) Deserialize(buf *bytes.Reader) error {
	if err := m.Header.Deserialize(buf); err != nil {
		return err
	}
	for _, f := range []*float32{
		&m.AngleMin, &m.AngleMax, &m.AngleIncrement,
		&m.TimeIncrement, &m.ScanTime,
		&m.RangeMin, &m.RangeMax,
	} {
		if err := binary.Read(buf, binary.LittleEndian, f); err != nil {
			return err
		}
	}
	var err error
	if m.Ranges, err = readFloat32s(buf); err != nil {
		return fmt.Errorf("ranges: %w", err)
	}
	if m.Intensities, err = readFloat32s(buf); err != nil {
		return fmt.Errorf("intensities: %w", err)
	}
	return nil
}

// writeFloat32s writes a uint32 length prefix followed by the values.
func writeFloat32s(buf *bytes.Buffer, v []float32) error {
	if err := binary.Write(buf, binary.LittleEndian, uint32(len(v))); err != nil {
		return err
	}
	return binary.Write(buf, binary.LittleEndian, v)
}

func readFloat32s(buf *bytes.Reader) ([]float32, error) {
	var size uint32
	if err := binary.Read(buf, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if int64(size)*4 > int64(buf.Len()) {
		return nil, fmt.Errorf("array of %d float32 exceeds remaining %d bytes", size, buf.Len())
	}
	v := make([]float32, size)
	if err := binary.Read(buf, binary.LittleEndian, v); err != nil {
		return nil, err
	}
	return v, nil
}
