package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusRecorder struct {
	detections *prometheus.CounterVec
	providers  *prometheus.CounterVec
	latency    *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the detection metrics on reg.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	detections := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payscope",
			Name:      "detections_total",
			Help:      "Balance detections by payment network and outcome",
		},
		[]string{"network", "outcome"},
	)
	providers := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "payscope",
			Name:      "btc_provider_results_total",
			Help:      "Bitcoin provider answers by provider and result",
		},
		[]string{"provider", "result"},
	)
	latency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "payscope",
			Name:      "detection_duration_seconds",
			Help:      "Balance detection latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"network"},
	)

	for _, c := range []prometheus.Collector{detections, providers, latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return &PrometheusRecorder{detections: detections, providers: providers, latency: latency}, nil
}

func (p *PrometheusRecorder) ObserveDetection(network string, outcome string, d time.Duration) {
	p.detections.With(prometheus.Labels{"network": network, "outcome": outcome}).Inc()
	p.latency.With(prometheus.Labels{"network": network}).Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObserveProviderResult(provider string, ok bool) {
	result := "ok"
	if !ok {
		result = "failed"
	}
	p.providers.With(prometheus.Labels{"provider": provider, "result": result}).Inc()
}
