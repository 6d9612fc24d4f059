package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	LoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "visionzero_loads_total",
		Help: "Resource loads by resource and outcome status",
	}, []string{"resource", "status"})
	LoadDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "visionzero_load_duration_ms",
		Help:    "Resource load duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000},
	}, []string{"resource"})
	IncidentsLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "visionzero_incidents_loaded",
		Help: "Incidents in the published snapshot",
	})
	ReloadsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visionzero_reloads_total",
		Help: "Completed dashboard reloads",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visionzero_cache_hits_total",
		Help: "Summary cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "visionzero_cache_misses_total",
		Help: "Summary cache misses",
	})
	HeatmapRenderMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "visionzero_heatmap_render_ms",
		Help:    "Heatmap raster render duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500},
	})
)

func init() {
	prometheus.MustRegister(LoadsTotal)
	prometheus.MustRegister(LoadDurationMs)
	prometheus.MustRegister(IncidentsLoaded)
	prometheus.MustRegister(ReloadsTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(HeatmapRenderMs)
}

// Handler exposes the registered collectors for scraping
func Handler() http.Handler { return promhttp.Handler() }
