package metrics

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Every botctl invocation is a short-lived process, so counters would reset
// on each run. Lifecycle metrics are therefore "last seen" gauges that keep
// their meaning when merged by a Pushgateway or scraped from a textfile.
var (
	regOK atomic.Bool

	lastEvent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "lifecycle",
			Name:      "last_event_timestamp_seconds",
			Help:      "Unix time of the most recent lifecycle event by type.",
		}, []string{"event"},
	)
	managedPID = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "lifecycle",
			Name:      "managed_pid",
			Help:      "Pid of the managed process as last observed; 0 when not running.",
		}, []string{"state"},
	)
	operationDuration = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "lifecycle",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of the most recent run of each lifecycle operation.",
		}, []string{"operation"},
	)
	lastStopForced = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "botctl",
			Subsystem: "lifecycle",
			Name:      "last_stop_forced",
			Help:      "1 when the most recent stop had to escalate to forced termination.",
		}, []string{"process"},
	)
)

// Register registers all metrics with the provided registerer. Registering
// twice with the same registerer is not an error.
func Register(r prometheus.Registerer) error {
	cs := []prometheus.Collector{lastEvent, managedPID, operationDuration, lastStopForced, residentMemory, cpuPercent, numThreads, openFDs}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Below are lightweight helpers used by the supervisor to record metrics.
// They no-op if Register hasn't been called.

func MarkEvent(event string, at time.Time) {
	if regOK.Load() {
		lastEvent.WithLabelValues(event).Set(float64(at.Unix()))
	}
}

// SetRunning records the pid when running, or 0 when not.
func SetRunning(pid int, running bool) {
	if !regOK.Load() {
		return
	}
	if running {
		managedPID.WithLabelValues("running").Set(float64(pid))
		return
	}
	managedPID.WithLabelValues("running").Set(0)
}

func ObserveOperation(op string, d time.Duration) {
	if regOK.Load() {
		operationDuration.WithLabelValues(op).Set(d.Seconds())
	}
}

func SetStopForced(process string, forced bool) {
	if !regOK.Load() {
		return
	}
	v := 0.0
	if forced {
		v = 1
	}
	lastStopForced.WithLabelValues(process).Set(v)
}

// WriteTextfile dumps g in the text exposition format for the node_exporter
// textfile collector. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	return prometheus.WriteToTextfile(path, g)
}

// Push adds the gathered metrics to a Pushgateway under job, replacing only
// metric families present in g.
func Push(url, job string, g prometheus.Gatherer) error {
	return push.New(url, job).Gatherer(g).Add()
}
