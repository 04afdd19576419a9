package sensor_msgs

import (
	"bytes"
	"testing"

	"github.com/akio/rosgo/ros"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserpoi/msgs/std_msgs"
)

func TestLaserScanWireFormat(t *testing.T) {
	scan := LaserScan{
		Header: std_msgs.Header{
			Seq:     7,
			Stamp:   ros.NewTime(1700000000, 500),
			FrameId: "laser_frame",
		},
		AngleMin:       0,
		AngleMax:       1,
		AngleIncrement: 0.25,
		ScanTime:       1.0 / 12,
		RangeMin:       0.12,
		RangeMax:       12,
		Ranges:         []float32{1, 2, 3, 4},
		Intensities:    []float32{10, 20, 30, 40},
	}

	var buf bytes.Buffer
	require.NoError(t, scan.Serialize(&buf))

	// header: seq(4) + stamp(8) + frame_id(4+11); 7 float32 scalars;
	// two float32 arrays of 4 with length prefixes.
	assert.Equal(t, 4+8+4+11+7*4+2*(4+4*4), buf.Len())

	var got LaserScan
	require.NoError(t, got.Deserialize(bytes.NewReader(buf.Bytes())))
	assert.Equal(t, scan, got)
}

func TestLaserScanDeserializeTruncated(t *testing.T) {
	scan := LaserScan{Ranges: []float32{1, 2, 3}, Intensities: []float32{4, 5, 6}}
	var buf bytes.Buffer
	require.NoError(t, scan.Serialize(&buf))

	data := buf.Bytes()
	var got LaserScan
	assert.Error(t, got.Deserialize(bytes.NewReader(data[:len(data)-5])))
}

func TestMsgLaserScanType(t *testing.T) {
	assert.Equal(t, "sensor_msgs/LaserScan", MsgLaserScan.Name())
	assert.Equal(t, "90c7ef2dc6895d81024acba2ac42f369", MsgLaserScan.MD5Sum())
	assert.Equal(t, "2176decaecbce78abc3b96ef049fabed", std_msgs.MsgHeader.MD5Sum())

	m, ok := MsgLaserScan.NewMessage().(*LaserScan)
	require.True(t, ok)
	assert.Empty(t, m.Ranges)
	assert.Same(t, MsgLaserScan, m.Type())
}
