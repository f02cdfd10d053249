// Package metrics holds Prometheus instruments shared across the engine.  All
// collectors are registered with the default registry, so mounting
// promhttp.Handler() is enough to expose them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	ContentWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quire_content_writes_total",
			Help: "Content store writes by operation.",
		}, []string{"op"})

	ImportRowsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quire_import_rows_total",
			Help: "Bulk import rows by outcome (success, skipped, failed).",
		}, []string{"result"})

	RenderFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quire_render_failures_total",
			Help: "Rendering steps that fell back to raw text.",
		}, []string{"stage"})

	CollectionMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quire_collection_misses_total",
			Help: "Collection lookups that found nothing for the requested site.",
		})

	ScheduledPublishTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quire_scheduled_publish_total",
			Help: "Drafts published by the scheduler.",
		})
)

func init() {
	prometheus.MustRegister(
		ContentWritesTotal,
		ImportRowsTotal,
		RenderFailuresTotal,
		CollectionMissesTotal,
		ScheduledPublishTotal,
	)
}
