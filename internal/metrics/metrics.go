package metrics

import (
    "sync"
    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/collectors"
)

var (
    // Registry is the dedicated Prometheus registry for the tracker process
    Registry = prometheus.NewRegistry()

    // Polls counts order-list polls by result (ok, error, discarded)
    Polls = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "tracker_polls_total", Help: "Order list polls by result."},
        []string{"result"},
    )
    // PollDuration records how long each order-list fetch took
    PollDuration = prometheus.NewHistogram(
        prometheus.HistogramOpts{Name: "tracker_poll_duration_seconds", Help: "Order list fetch duration in seconds.", Buckets: prometheus.DefBuckets},
    )
    // CoalescedTicks counts poll requests folded into an in-flight fetch
    CoalescedTicks = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "tracker_coalesced_ticks_total", Help: "Poll ticks coalesced into an in-flight fetch."},
    )
    // ChangedOrders counts orders reported as changed to subscribers
    ChangedOrders = prometheus.NewCounter(
        prometheus.CounterOpts{Name: "tracker_changed_orders_total", Help: "Orders reported as changed."},
    )
    // Subscribers is the current number of registered subscribers
    Subscribers = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "tracker_subscribers", Help: "Registered tracker subscribers."},
    )
    // BackoffSeconds is the delay before the next poll after a failure (0 when healthy)
    BackoffSeconds = prometheus.NewGauge(
        prometheus.GaugeOpts{Name: "tracker_backoff_seconds", Help: "Current poll backoff delay in seconds."},
    )

    // TransportRequests counts API calls by operation and outcome
    TransportRequests = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "transport_requests_total", Help: "API requests by operation and status."},
        []string{"op", "status"},
    )
    // CacheLookups counts tracking snapshot cache lookups by result (hit, miss, error)
    CacheLookups = prometheus.NewCounterVec(
        prometheus.CounterOpts{Name: "tracking_cache_lookups_total", Help: "Tracking snapshot cache lookups by result."},
        []string{"result"},
    )
)

// RegisterDefault registers collectors to Registry.
func RegisterDefault() {
    regOnce.Do(func(){
        Registry.MustRegister(Polls)
        Registry.MustRegister(PollDuration)
        Registry.MustRegister(CoalescedTicks)
        Registry.MustRegister(ChangedOrders)
        Registry.MustRegister(Subscribers)
        Registry.MustRegister(BackoffSeconds)
        Registry.MustRegister(TransportRequests)
        Registry.MustRegister(CacheLookups)
        // Go/process collectors on our registry
        Registry.MustRegister(collectors.NewGoCollector())
        Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
    })
}

var regOnce sync.Once
