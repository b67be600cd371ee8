package metrics

import (
	"fmt"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

var (
	systemCPUUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "Current CPU usage percentage",
		},
		[]string{"core"},
	)

	systemMemoryUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
		[]string{"type"},
	)

	goHeapAlloc = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "service_go_heap_alloc_bytes",
			Help: "Heap memory in use by the service",
		},
		[]string{"service"},
	)

	goGoroutines = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "service_go_goroutines",
			Help: "Number of goroutines in the service",
		},
		[]string{"service"},
	)
)

// StartSystemMetricsCollection starts a goroutine that samples host and
// Go runtime metrics every 15 seconds.
func StartSystemMetricsCollection(serviceName string) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for range ticker.C {
			collectSystemMetrics()
			collectRuntimeMetrics(serviceName)
		}
	}()
}

func collectSystemMetrics() {
	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
	}
}

func collectRuntimeMetrics(serviceName string) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	goHeapAlloc.WithLabelValues(serviceName).Set(float64(m.HeapAlloc))
	goGoroutines.WithLabelValues(serviceName).Set(float64(runtime.NumGoroutine()))
}
