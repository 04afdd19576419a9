package detector

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"laserpoi/msgs/sensor_msgs"
	"laserpoi/msgs/std_msgs"
	"laserpoi/poi"
	"laserpoi/ydlidar"
)

type call struct {
	kind   string
	seq    uint32
	window poi.Window
	err    error
}

type recordingReporter struct {
	calls []call
}

func (r *recordingReporter) Found(seq uint32, w poi.Window) {
	r.calls = append(r.calls, call{kind: "found", seq: seq, window: w})
}

func (r *recordingReporter) NotFound(seq uint32) {
	r.calls = append(r.calls, call{kind: "none", seq: seq})
}

func (r *recordingReporter) Rejected(seq uint32, err error) {
	r.calls = append(r.calls, call{kind: "rejected", seq: seq, err: err})
}

func laserScan(seq uint32, intensities ...float32) *sensor_msgs.LaserScan {
	ranges := make([]float32, len(intensities))
	for i := range ranges {
		ranges[i] = 2
	}
	return &sensor_msgs.LaserScan{
		Header:         std_msgs.Header{Seq: seq, FrameId: "laser_frame"},
		AngleMin:       -1,
		AngleMax:       -1 + 0.25*float32(len(intensities)),
		AngleIncrement: 0.25,
		RangeMin:       0.12,
		RangeMax:       12,
		Ranges:         ranges,
		Intensities:    intensities,
	}
}

func TestHandleScan(t *testing.T) {
	rec := &recordingReporter{}
	d, err := New(poi.DefaultConfig(), rec)
	require.NoError(t, err)

	require.NoError(t, d.HandleScan(laserScan(1, 0, 0, 30, 40, 20, 10, 0, 0)))
	require.NoError(t, d.HandleScan(laserScan(2, 1, 2, 3, 4, 5)))

	bad := laserScan(3, 0, 0, 30, 40)
	bad.AngleIncrement = 0
	err = d.HandleScan(bad)
	assert.True(t, errors.Is(err, poi.ErrInvalidFrame))

	short := laserScan(4, 0, 0, 30, 40)
	short.Intensities = short.Intensities[:2]
	assert.True(t, errors.Is(d.HandleScan(short), poi.ErrInvalidFrame))

	require.Len(t, rec.calls, 4)
	assert.Equal(t, call{kind: "found", seq: 1, window: poi.Window{Index: 2, Score: 100}}, rec.calls[0])
	assert.Equal(t, call{kind: "none", seq: 2}, rec.calls[1])
	assert.Equal(t, "rejected", rec.calls[2].kind)
	assert.Equal(t, uint32(3), rec.calls[2].seq)
	assert.Equal(t, "rejected", rec.calls[3].kind)
}

func TestHandleScanOutOfRangeBeam(t *testing.T) {
	rec := &recordingReporter{}
	d, err := New(poi.DefaultConfig(), rec)
	require.NoError(t, err)

	scan := laserScan(9, 0, 0, 30, 40, 20, 10, 0, 0)
	scan.Ranges[2] = scan.RangeMax + 1
	require.NoError(t, d.HandleScan(scan))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "none", rec.calls[0].kind)
}

func TestHandleScanNil(t *testing.T) {
	rec := &recordingReporter{}
	d, err := New(poi.DefaultConfig(), rec)
	require.NoError(t, err)

	assert.True(t, errors.Is(d.HandleScan(nil), poi.ErrInvalidFrame))
	require.Len(t, rec.calls, 1)
	assert.Equal(t, "rejected", rec.calls[0].kind)
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(poi.Config{WindowSize: 0, Threshold: 90})
	assert.Error(t, err)
}

func TestFrameFromScan(t *testing.T) {
	f := FrameFromScan(laserScan(1, 5, 6))
	assert.Equal(t, -1.0, f.AngleMin)
	assert.Equal(t, -0.5, f.AngleMax)
	assert.Equal(t, 0.25, f.AngleIncrement)
	assert.Equal(t, []float64{2, 2}, f.Ranges)
	assert.Equal(t, []float64{5, 6}, f.Intensities)

	n, err := f.BeamCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

// A revolution assembled by the G2 driver flows through the detector.
func TestHandleScanFromScanBuilder(t *testing.T) {
	b := ydlidar.NewScanBuilder("laser_frame")
	b.Add(ydlidar.Packet{ZeroPacket: true, ScanFrequency: 10})
	b.Add(ydlidar.Packet{
		FirstAngle:  0,
		LastAngle:   80,
		Distances:   []uint16{1000, 1000, 1000, 1000, 1000, 1000, 1000, 1000},
		Intensities: []uint16{5, 5, 300, 320, 310, 5, 5, 5},
	})
	scan := b.Add(ydlidar.Packet{ZeroPacket: true})
	require.NotNil(t, scan)

	rec := &recordingReporter{}
	d, err := New(poi.DefaultConfig(), rec)
	require.NoError(t, err)
	require.NoError(t, d.HandleScan(scan))

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "found", rec.calls[0].kind)
	// Windows 1 and 2 tie at 935; the first wins.
	assert.Equal(t, poi.Window{Index: 1, Score: 935}, rec.calls[0].window)
}

func TestScannerConfig(t *testing.T) {
	cfg, err := ScannerConfig("", -1, -1)
	require.NoError(t, err)
	assert.Equal(t, poi.DefaultConfig(), cfg)

	cfg, err = ScannerConfig("", 6, 0)
	require.NoError(t, err)
	assert.Equal(t, poi.Config{WindowSize: 6, Threshold: 0}, cfg)

	path := filepath.Join(t.TempDir(), "scanner.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"window_size": 5, "threshold": 120}`), 0o644))

	cfg, err = ScannerConfig(path, -1, 200)
	require.NoError(t, err)
	assert.Equal(t, poi.Config{WindowSize: 5, Threshold: 200}, cfg)

	_, err = ScannerConfig(filepath.Join(t.TempDir(), "missing.json"), -1, -1)
	assert.Error(t, err)
}

func TestMetricsReporter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsReporter(reg)
	require.NoError(t, err)

	d, err := New(poi.DefaultConfig(), m, LogReporter{})
	require.NoError(t, err)

	require.NoError(t, d.HandleScan(laserScan(1, 0, 0, 30, 40, 20, 10, 0, 0)))
	require.NoError(t, d.HandleScan(laserScan(2, 1, 1, 1, 1)))
	assert.Error(t, d.HandleScan(nil))

	assert.Equal(t, 3.0, testutil.ToFloat64(m.FramesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FramesRejected))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Detections))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LastIndex))
	assert.Equal(t, 100.0, testutil.ToFloat64(m.LastScore))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "laserpoi_poi_detected_total 1")
}

func TestMetricsReporterReregister(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewMetricsReporter(reg)
	require.NoError(t, err)
	second, err := NewMetricsReporter(reg)
	require.NoError(t, err)

	first.NotFound(1)
	assert.Equal(t, 1.0, testutil.ToFloat64(second.FramesTotal))
}

func TestMetricsReporterNil(t *testing.T) {
	var m *MetricsReporter
	m.Found(1, poi.Window{})
	m.NotFound(1)
	m.Rejected(1, errors.New("boom"))
	assert.NotNil(t, m.Handler())
}
