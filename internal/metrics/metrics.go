// Package metrics exposes pipeline counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/hyperjump/molegis/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "molegis"

// Pipeline holds the collectors for scrape and embedding runs on its own registry.
type Pipeline struct {
	registry   *prometheus.Registry
	bills      *prometheus.CounterVec
	embeddings prometheus.Counter
	inFlight   prometheus.Gauge
	downloads  *prometheus.HistogramVec
	sessions   *prometheus.CounterVec
}

// NewPipeline creates the collectors and registers them, plus Go and process collectors.
func NewPipeline() *Pipeline {
	p := &Pipeline{
		registry: prometheus.NewRegistry(),
		bills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bills_total",
			Help:      "Bills finished by outcome.",
		}, []string{"status"}),
		embeddings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embeddings_created_total",
			Help:      "Embedding chunks stored.",
		}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bill_tasks_in_flight",
			Help:      "Bill processing tasks currently running.",
		}),
		downloads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_download_seconds",
			Help:      "Time to obtain a document's bytes.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"result"}),
		sessions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Session runs by outcome.",
		}, []string{"outcome"}),
	}
	p.registry.MustRegister(
		p.bills, p.embeddings, p.inFlight, p.downloads, p.sessions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

// Registry returns the registry the collectors live on.
func (p *Pipeline) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Pipeline) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// BillFinished counts one bill outcome.
func (p *Pipeline) BillFinished(status models.BillStatus) {
	p.bills.WithLabelValues(string(status)).Inc()
}

// EmbeddingsCreated adds n stored chunks.
func (p *Pipeline) EmbeddingsCreated(n int) {
	if n > 0 {
		p.embeddings.Add(float64(n))
	}
}

// TaskStarted marks a bill task as running.
func (p *Pipeline) TaskStarted() { p.inFlight.Inc() }

// TaskFinished marks a bill task as done.
func (p *Pipeline) TaskFinished() { p.inFlight.Dec() }

// SessionFinished counts one session run.
func (p *Pipeline) SessionFinished(ok bool) {
	outcome := "succeeded"
	if !ok {
		outcome = "failed"
	}
	p.sessions.WithLabelValues(outcome).Inc()
}

// ObserveDownload records how long a document took to obtain.
func (p *Pipeline) ObserveDownload(d time.Duration, cached bool, err error) {
	result := "downloaded"
	switch {
	case err != nil:
		result = "error"
	case cached:
		result = "cached"
	}
	p.downloads.WithLabelValues(result).Observe(d.Seconds())
}
