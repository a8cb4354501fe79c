package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// MetricsManager is a singleton that owns the registry and the system collectors
type MetricsManager struct {
	systemCPUUsage    *prometheus.GaugeVec
	systemMemoryUsage *prometheus.GaugeVec

	goGoroutines    prometheus.Gauge
	goMaxProcs      prometheus.Gauge
	goHeapAlloc     prometheus.Gauge
	goHeapSys       prometheus.Gauge
	goGCPauseNs     prometheus.Histogram
	goGCCPUFraction prometheus.Gauge

	processOpenFDs   prometheus.Gauge
	processStartTime prometheus.Gauge

	registry *prometheus.Registry
	proc     *process.Process

	initialized bool
	mu          sync.RWMutex
}

var (
	instance *MetricsManager
	once     sync.Once
)

// GetInstance returns the singleton instance of MetricsManager
func GetInstance() *MetricsManager {
	once.Do(func() {
		instance = &MetricsManager{
			registry: prometheus.NewRegistry(),
		}
	})
	return instance
}

// Registry exposes the registry business and system metrics are registered with.
func (mm *MetricsManager) Registry() *prometheus.Registry {
	return mm.registry
}

// Handler serves the singleton registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetInstance().registry, promhttp.HandlerOpts{})
}

// InitializeMetrics creates and registers the system collectors (thread-safe)
func (mm *MetricsManager) InitializeMetrics() {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	if mm.initialized {
		return
	}

	mm.systemCPUUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_cpu_usage_percent",
			Help: "Current CPU usage percentage",
		},
		[]string{"core"},
	)

	mm.systemMemoryUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "system_memory_usage_bytes",
			Help: "Current memory usage in bytes",
		},
		[]string{"type"},
	)

	mm.goGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_goroutines",
		Help: "Number of goroutines that currently exist",
	})

	mm.goMaxProcs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_gomaxprocs",
		Help: "Value of GOMAXPROCS",
	})

	mm.goHeapAlloc = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_heap_alloc_bytes",
		Help: "Heap memory usage in bytes",
	})

	mm.goHeapSys = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_heap_sys_bytes",
		Help: "Heap memory reserved in bytes",
	})

	mm.goGCPauseNs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "portal_gc_pause_nanoseconds",
		Help:    "GC pause time in nanoseconds",
		Buckets: prometheus.ExponentialBuckets(1000, 2, 20),
	})

	mm.goGCCPUFraction = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_gc_cpu_fraction",
		Help: "Fraction of CPU time used by GC",
	})

	mm.processOpenFDs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_process_open_fds",
		Help: "Number of open file descriptors",
	})

	mm.processStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "portal_process_start_time_seconds",
		Help: "Start time of the process since unix epoch in seconds",
	})

	mm.registry.MustRegister(
		mm.systemCPUUsage,
		mm.systemMemoryUsage,
		mm.goGoroutines,
		mm.goMaxProcs,
		mm.goHeapAlloc,
		mm.goHeapSys,
		mm.goGCPauseNs,
		mm.goGCCPUFraction,
		mm.processOpenFDs,
		mm.processStartTime,
	)

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		mm.proc = p
	} else {
		log.Warn().Err(err).Msg("Process metrics unavailable")
	}

	mm.initialized = true
}

// StartSystemMetrics collects system metrics every interval until ctx is done.
// It is a no-op when enabled is false.
func StartSystemMetrics(ctx context.Context, enabled bool, interval time.Duration) {
	if !enabled {
		return
	}

	mm := GetInstance()
	mm.InitializeMetrics()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				mm.collectSystemMetrics()
				mm.collectGoRuntimeMetrics()
				mm.collectProcessMetrics()
			}
		}
	}()
}

func (mm *MetricsManager) collectSystemMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized {
		return
	}

	if cpuPercentages, err := cpu.Percent(0, true); err == nil {
		for i, percentage := range cpuPercentages {
			mm.systemCPUUsage.WithLabelValues(fmt.Sprintf("cpu%d", i)).Set(percentage)
		}
	}

	if vmstat, err := mem.VirtualMemory(); err == nil {
		mm.systemMemoryUsage.WithLabelValues("total").Set(float64(vmstat.Total))
		mm.systemMemoryUsage.WithLabelValues("available").Set(float64(vmstat.Available))
		mm.systemMemoryUsage.WithLabelValues("used").Set(float64(vmstat.Used))
		mm.systemMemoryUsage.WithLabelValues("free").Set(float64(vmstat.Free))
	}
}

func (mm *MetricsManager) collectGoRuntimeMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized {
		return
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	mm.goGoroutines.Set(float64(runtime.NumGoroutine()))
	mm.goMaxProcs.Set(float64(runtime.GOMAXPROCS(0)))
	mm.goHeapAlloc.Set(float64(m.HeapAlloc))
	mm.goHeapSys.Set(float64(m.HeapSys))
	mm.goGCPauseNs.Observe(float64(m.PauseNs[(m.NumGC+255)%256]))
	mm.goGCCPUFraction.Set(m.GCCPUFraction)
}

func (mm *MetricsManager) collectProcessMetrics() {
	mm.mu.RLock()
	defer mm.mu.RUnlock()

	if !mm.initialized || mm.proc == nil {
		return
	}

	if fds, err := mm.proc.NumFDs(); err == nil {
		mm.processOpenFDs.Set(float64(fds))
	}
	if created, err := mm.proc.CreateTime(); err == nil {
		// gopsutil reports milliseconds
		mm.processStartTime.Set(float64(created) / 1000)
	}
}
