// Package metrics exposes Prometheus collectors for extractions.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rangefetch"

// Metrics holds the extraction collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	FragmentsFetched prometheus.Counter
	FragmentsFailed  *prometheus.CounterVec
	BytesFetched     prometheus.Counter
	BytesDecoded     prometheus.Counter
	FetchLatency     prometheus.Histogram
	Extractions      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
// Collectors that are already registered are reused.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		FragmentsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_fetched_total",
			Help:      "Total number of fragments fetched and decoded",
		}),
		FragmentsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fragments_failed_total",
			Help:      "Total number of fragment failures by step",
		}, []string{"op"}),
		BytesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetched_bytes_total",
			Help:      "Total compressed bytes received from range requests",
		}),
		BytesDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decoded_bytes_total",
			Help:      "Total decoded fragment bytes",
		}),
		FetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Histogram of single range request latency",
			Buckets:   prometheus.DefBuckets,
		}),
		Extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of extractions by result",
		}, []string{"result"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.FragmentsFetched, err = register(reg, m.FragmentsFetched); err != nil {
		return nil, err
	}
	if m.FragmentsFailed, err = register(reg, m.FragmentsFailed); err != nil {
		return nil, err
	}
	if m.BytesFetched, err = register(reg, m.BytesFetched); err != nil {
		return nil, err
	}
	if m.BytesDecoded, err = register(reg, m.BytesDecoded); err != nil {
		return nil, err
	}
	if m.FetchLatency, err = register(reg, m.FetchLatency); err != nil {
		return nil, err
	}
	if m.Extractions, err = register(reg, m.Extractions); err != nil {
		return nil, err
	}
	return m, nil
}

// register registers c, returning the existing collector when an identical
// one is already registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveFetch records a successful range request.
func (m *Metrics) ObserveFetch(d time.Duration, n int) {
	if m == nil {
		return
	}
	m.FetchLatency.Observe(d.Seconds())
	m.BytesFetched.Add(float64(n))
}

// ObserveFragment records a decoded fragment.
func (m *Metrics) ObserveFragment(decoded int) {
	if m == nil {
		return
	}
	m.FragmentsFetched.Inc()
	m.BytesDecoded.Add(float64(decoded))
}

// ObserveFailure records a failed fragment step ("fetch" or "decode").
func (m *Metrics) ObserveFailure(op string) {
	if m == nil {
		return
	}
	m.FragmentsFailed.WithLabelValues(op).Inc()
}

// ObserveExtraction records the outcome of an extraction.
func (m *Metrics) ObserveExtraction(err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.Extractions.WithLabelValues(result).Inc()
}
