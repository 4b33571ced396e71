// Package metrics exposes the runtime's Prometheus collectors: sample
// throughput and loss, endpoint matching, discovery timing, and resource
// gauges feeding the OUT_OF_RESOURCES detection of spec.md §7.
//
// Grounded on the teacher's internal/metrics package: a single struct
// holding pre-registered collectors, constructed once and threaded through
// every package that needs to record something.
package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
)

// Metrics holds every collector this runtime registers.
type Metrics struct {
	SamplesWritten   *prometheus.CounterVec // by topic
	SamplesRead      *prometheus.CounterVec // by topic
	SamplesRejected  *prometheus.CounterVec // by reason
	SamplesLost      *prometheus.CounterVec // by reason
	Duplicates       prometheus.Counter

	EndpointsMatched   *prometheus.GaugeVec // by kind (publication/subscription)
	IncompatibleQoS    *prometheus.CounterVec // by policy id

	WriterCacheDepth *prometheus.GaugeVec // by writer guid
	ReaderCacheDepth *prometheus.GaugeVec // by reader guid

	DiscoveryLatency prometheus.Histogram
	HeartbeatsSent   prometheus.Counter
	AckNacksSent     prometheus.Counter

	GoroutineCount prometheus.Gauge
	MemoryBytes    prometheus.Gauge
	CPUPercent     prometheus.Gauge

	resources *resourceSampler
}

// New constructs and registers every collector against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SamplesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godds_samples_written_total",
			Help: "Samples handed to a DataWriter, by topic.",
		}, []string{"topic"}),
		SamplesRead: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godds_samples_read_total",
			Help: "Samples returned by a DataReader read/take, by topic.",
		}, []string{"topic"}),
		SamplesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godds_samples_rejected_total",
			Help: "Samples rejected by a reader, by reason.",
		}, []string{"reason"}),
		SamplesLost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godds_samples_lost_total",
			Help: "Samples a best-effort reader detected as permanently missing, by reason.",
		}, []string{"reason"}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godds_duplicate_samples_total",
			Help: "Samples discarded because they were already in a reader's cache.",
		}),
		EndpointsMatched: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godds_endpoints_matched",
			Help: "Currently matched remote endpoints, by local kind.",
		}, []string{"kind"}),
		IncompatibleQoS: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "godds_incompatible_qos_total",
			Help: "Offered/requested QoS incompatibilities detected, by policy.",
		}, []string{"policy"}),
		WriterCacheDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godds_writer_cache_depth",
			Help: "Current number of changes held in a writer's history cache.",
		}, []string{"writer_guid"}),
		ReaderCacheDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "godds_reader_cache_depth",
			Help: "Current number of changes held in a reader's history cache.",
		}, []string{"reader_guid"}),
		DiscoveryLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "godds_discovery_latency_seconds",
			Help:    "Time from first SPDP receipt of a remote participant to SEDP match.",
			Buckets: prometheus.DefBuckets,
		}),
		HeartbeatsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godds_heartbeats_sent_total",
			Help: "HEARTBEAT submessages sent by stateful writers.",
		}),
		AckNacksSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "godds_acknacks_sent_total",
			Help: "ACKNACK submessages sent by stateful readers.",
		}),
		GoroutineCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "godds_goroutines",
			Help: "Current goroutine count (runtime.NumGoroutine).",
		}),
		MemoryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "godds_memory_bytes",
			Help: "Process heap bytes in use.",
		}),
		CPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "godds_cpu_percent",
			Help: "System-wide CPU usage percent (all CPUs combined), sampled periodically.",
		}),
		resources: newResourceSampler(),
	}

	for _, c := range []prometheus.Collector{
		m.SamplesWritten, m.SamplesRead, m.SamplesRejected, m.SamplesLost,
		m.Duplicates, m.EndpointsMatched, m.IncompatibleQoS,
		m.WriterCacheDepth, m.ReaderCacheDepth, m.DiscoveryLatency,
		m.HeartbeatsSent, m.AckNacksSent,
		m.GoroutineCount, m.MemoryBytes, m.CPUPercent,
	} {
		if reg != nil {
			reg.MustRegister(c)
		}
	}
	return m
}

// SampleResources refreshes the goroutine/memory/CPU gauges. Intended to be
// called periodically (e.g. from the participant's housekeeping timer).
func (m *Metrics) SampleResources() {
	m.GoroutineCount.Set(float64(runtime.NumGoroutine()))

	var mstats runtime.MemStats
	runtime.ReadMemStats(&mstats)
	m.MemoryBytes.Set(float64(mstats.HeapInuse))

	if pct, ok := m.resources.cpuPercent(); ok {
		m.CPUPercent.Set(pct)
	}
}

// resourceSampler wraps gopsutil's system-wide CPU sampling (not this
// process's own share), which needs two readings spaced apart to produce a
// percentage.
type resourceSampler struct {
	mu       sync.Mutex
	lastTime time.Time
}

func newResourceSampler() *resourceSampler {
	return &resourceSampler{lastTime: time.Now()}
}

func (r *resourceSampler) cpuPercent() (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if time.Since(r.lastTime) < time.Second {
		return 0, false
	}
	r.lastTime = time.Now()
	percents, err := cpu.Percent(0, false)
	if err != nil || len(percents) == 0 {
		return 0, false
	}
	return percents[0], true
}
