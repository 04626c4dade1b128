package hub

import "github.com/prometheus/client_golang/prometheus"

var Clients = prometheus.NewGauge(prometheus.GaugeOpts{
	Namespace: "stree",
	Subsystem: "hub",
	Name:      "clients",
})

var Frames = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "hub",
	Name:      "frames",
}, []string{"kind"})

var DroppedClients = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "stree",
	Subsystem: "hub",
	Name:      "dropped_clients",
})

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{Clients, Frames, DroppedClients}
}
