package telemetry

import (
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgen_generations_total",
		Help: "Documents submitted for generation per surface",
	}, []string{"surface"})

	GenerationErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgen_generation_errors_total",
		Help: "Failed generations per surface and error kind",
	}, []string{"surface", "kind"})

	GenerationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hookgen_generation_duration_seconds",
		Help:    "Time taken to parse and generate a document",
		Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
	}, []string{"surface"})

	SectionsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgen_sections_total",
		Help: "Sections with generated code",
	}, []string{"section"})

	StoreErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hookgen_store_errors_total",
		Help: "Failed reads and writes of saved input",
	}, []string{"op"})
)

// Measures a single generation. surface is where the
// request came from: cli, api, form or live.
type Metrics struct {
	start   time.Time
	surface string
	once    sync.Once
}

func NewMetrics(surface string) *Metrics {
	return &Metrics{surface: surface}
}

func (m *Metrics) Start() {
	m.start = time.Now()
	Generations.WithLabelValues(m.surface).Inc()
}

// kind is one of the ui error kinds
func (m *Metrics) Failure(kind string) {
	GenerationErrors.WithLabelValues(m.surface, kind).Inc()
}

func (m *Metrics) Section(s string) {
	SectionsGenerated.WithLabelValues(s).Inc()
}

func StoreError(op string, err error) {
	StoreErrors.WithLabelValues(op).Inc()
	slog.Warn("store error", "op", op, "error", err)
}

func (m *Metrics) Stop() {
	m.once.Do(func() {
		GenerationDuration.WithLabelValues(m.surface).Observe(time.Since(m.start).Seconds())
	})
}
