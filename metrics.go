package stree

import "github.com/prometheus/client_golang/prometheus"

var EncodedBytes = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "encoder",
	Name:      "encoded_bytes",
}, []string{"mode"})

var EncodePasses = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "encoder",
	Name:      "passes",
}, []string{"mode"})

var EncodeBufferGrowths = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "encoder",
	Name:      "buffer_growths",
})

var DecodedChanges = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "decoder",
	Name:      "changes",
})

var DecodeMismatches = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "decoder",
	Name:      "mismatches",
}, []string{"reason"})

var CollectedRefs = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "decoder",
	Name:      "collected_refs",
})

const (
	modeDelta    = "delta"
	modeFull     = "full"
	modeView     = "view"
	modeFullView = "full_view"
)

// Collectors lists the package metrics for registration.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		EncodedBytes,
		EncodePasses,
		EncodeBufferGrowths,
		DecodedChanges,
		DecodeMismatches,
		CollectedRefs,
	}
}
