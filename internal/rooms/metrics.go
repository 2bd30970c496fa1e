package rooms

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	annotationsAppended = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "rooms",
		Name:      "annotations_appended_total",
		Help:      "Annotations accepted into a room",
	})

	appendConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Subsystem: "rooms",
		Name:      "append_conflicts_total",
		Help:      "Annotation writes retried because another write landed first",
	})

	summaries = promauto.NewCounterVec(prometheus.CounterOpts{
		Subsystem: "rooms",
		Name:      "summaries_total",
		Help:      "Summary transitions by outcome",
	}, []string{"result"})
)

const (
	summaryGenerated = "generated"
	summaryFailed    = "failed"
	summaryDiscarded = "discarded"
	summaryRetried   = "retried"
)
