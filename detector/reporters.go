package detector

import (
	"fmt"
	"net/http"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"laserpoi/poi"
)

// LogReporter writes results to glog. Found windows are printed as
// "intensity[<index>]: <score>".
type LogReporter struct{}

func (LogReporter) Found(seq uint32, w poi.Window) {
	glog.Infof("%v", w)
	glog.V(1).Infof("scan %d: poi at beam %d", seq, w.Index)
}

func (LogReporter) NotFound(seq uint32) {
	glog.V(2).Infof("scan %d: no poi", seq)
}

func (LogReporter) Rejected(seq uint32, err error) {
	glog.Warningf("scan %d rejected: %v", seq, err)
}

// MetricsReporter exposes detection results as Prometheus metrics.
type MetricsReporter struct {
	gatherer prometheus.Gatherer

	FramesTotal    prometheus.Counter
	FramesRejected prometheus.Counter
	Detections     prometheus.Counter
	LastIndex      prometheus.Gauge
	LastScore      prometheus.Gauge
}

// NewMetricsReporter registers detector metrics against the provided registerer.
func NewMetricsReporter(reg prometheus.Registerer) (*MetricsReporter, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserpoi_frames_total",
		Help: "Laser scans handled by the detector, including rejected ones.",
	}), "laserpoi_frames_total")
	if err != nil {
		return nil, err
	}

	rejected, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserpoi_frames_rejected_total",
		Help: "Laser scans rejected for malformed geometry.",
	}), "laserpoi_frames_rejected_total")
	if err != nil {
		return nil, err
	}

	detections, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "laserpoi_poi_detected_total",
		Help: "Laser scans in which a window exceeded the intensity threshold.",
	}), "laserpoi_poi_detected_total")
	if err != nil {
		return nil, err
	}

	index, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "laserpoi_last_poi_index",
		Help: "First beam index of the most recently detected window.",
	}), "laserpoi_last_poi_index")
	if err != nil {
		return nil, err
	}

	score, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "laserpoi_last_poi_score",
		Help: "Summed intensity of the most recently detected window.",
	}), "laserpoi_last_poi_score")
	if err != nil {
		return nil, err
	}

	return &MetricsReporter{
		gatherer:       gatherer,
		FramesTotal:    frames,
		FramesRejected: rejected,
		Detections:     detections,
		LastIndex:      index,
		LastScore:      score,
	}, nil
}

func (m *MetricsReporter) Found(_ uint32, w poi.Window) {
	if m == nil {
		return
	}
	m.FramesTotal.Inc()
	m.Detections.Inc()
	m.LastIndex.Set(float64(w.Index))
	m.LastScore.Set(w.Score)
}

func (m *MetricsReporter) NotFound(uint32) {
	if m == nil {
		return
	}
	m.FramesTotal.Inc()
}

func (m *MetricsReporter) Rejected(uint32, error) {
	if m == nil {
		return
	}
	m.FramesTotal.Inc()
	m.FramesRejected.Inc()
}

// Handler returns an HTTP handler exposing the reporter's registry.
func (m *MetricsReporter) Handler() http.Handler {
	gatherer := prometheus.DefaultGatherer
	if m != nil && m.gatherer != nil {
		gatherer = m.gatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
