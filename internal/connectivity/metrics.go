package connectivity

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *monitorMetrics
	metricsOnce   sync.Once
)

type monitorMetrics struct {
	probesTotal   *prometheus.CounterVec
	restoredTotal prometheus.Counter
	offlineTotal  prometheus.Counter
}

func metrics() *monitorMetrics {
	metricsOnce.Do(func() {
		globalMetrics = &monitorMetrics{
			probesTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "havend_connectivity_probes_total",
					Help: "Total reachability probes by result",
				},
				[]string{"result"}, // "reachable" or "unreachable"
			),
			restoredTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "havend_connectivity_restored_total",
				Help: "Total unreachable-to-reachable recoveries",
			}),
			offlineTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "havend_connectivity_offline_total",
				Help: "Total offline transitions reported by the platform",
			}),
		}
	})
	return globalMetrics
}
