package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/Dhoini/subscription-commerce/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SystemMetrics периодически снимает состояние рантайма
type SystemMetrics struct {
	log          *logger.Logger
	goroutines   prometheus.Gauge
	heapAlloc    prometheus.Gauge
	memorySystem prometheus.Gauge
	gcCycles     prometheus.Gauge
	startedAt    time.Time
}

// NewSystemMetrics регистрирует gauges рантайма и uptime
func NewSystemMetrics(registry *prometheus.Registry, log *logger.Logger) *SystemMetrics {
	f := promauto.With(registry)
	m := &SystemMetrics{
		log: log,
		goroutines: f.NewGauge(prometheus.GaugeOpts{
			Name: "system_goroutines",
			Help: "Current number of goroutines",
		}),
		heapAlloc: f.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_heap_alloc_bytes",
			Help: "Currently allocated heap memory in bytes",
		}),
		memorySystem: f.NewGauge(prometheus.GaugeOpts{
			Name: "system_memory_system_bytes",
			Help: "Total memory obtained from system in bytes",
		}),
		gcCycles: f.NewGauge(prometheus.GaugeOpts{
			Name: "system_gc_cycles",
			Help: "Completed garbage collection cycles",
		}),
		startedAt: time.Now(),
	}
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "system_uptime_seconds",
		Help: "Seconds since the process started",
	}, func() float64 { return time.Since(m.startedAt).Seconds() })
	return m
}

// Record снимает одно показание
func (m *SystemMetrics) Record() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.heapAlloc.Set(float64(ms.HeapAlloc))
	m.memorySystem.Set(float64(ms.Sys))
	m.gcCycles.Set(float64(ms.NumGC))
}

// Run снимает показания каждые interval до отмены ctx
func (m *SystemMetrics) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.log.Debugw("System metrics recording started", "interval", interval)
	m.Record()
	for {
		select {
		case <-ticker.C:
			m.Record()
		case <-ctx.Done():
			return
		}
	}
}
