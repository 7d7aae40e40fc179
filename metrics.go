package reachctl

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionBuckets = []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300}

// Metrics records orchestration outcomes in a private registry. reachctl is
// a short-lived command, so metrics are exported by writing the registry to
// a node_exporter textfile rather than by serving them.
//
// All methods are no-ops on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	transitions        *prometheus.CounterVec
	transitionDuration *prometheus.HistogramVec
	healthAttempts     *prometheus.CounterVec
	imageBuilds        *prometheus.CounterVec
	owner              *prometheus.GaugeVec
}

// NewMetrics creates the collectors in a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reach",
			Subsystem: "deploy",
			Name:      "transitions_total",
			Help:      "Number of start/stop commands by outcome",
		}, []string{"command", "outcome"}),
		transitionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "reach",
			Subsystem: "deploy",
			Name:      "transition_duration_seconds",
			Help:      "Wall time of start/stop commands",
			Buckets:   transitionBuckets,
		}, []string{"command"}),
		healthAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reach",
			Subsystem: "deploy",
			Name:      "health_attempts_total",
			Help:      "Health requests sent, by poll and result",
		}, []string{"poll", "result"}),
		imageBuilds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "reach",
			Subsystem: "deploy",
			Name:      "image_builds_total",
			Help:      "Image builds by outcome",
		}, []string{"outcome"}),
		owner: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "reach",
			Subsystem: "deploy",
			Name:      "owner",
			Help:      "1 for the owner observed by the last status query",
		}, []string{"owner"}),
	}
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile atomically writes the registry in text exposition format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// ObserveSnapshot records the owner seen by a status query
func (m *Metrics) ObserveSnapshot(s DeploymentSnapshot) {
	if m == nil {
		return
	}
	for _, o := range []OwnerState{NoneOwns, NativeOwns, ContainerOwns, Conflicting} {
		v := 0.0
		if o == s.Owner {
			v = 1
		}
		m.owner.WithLabelValues(o.String()).Set(v)
	}
}

func (m *Metrics) observeTransition(command string, res TransitionResult, err error) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(command, outcomeOf(res, err)).Inc()
	m.transitionDuration.WithLabelValues(command).Observe(res.Duration.Seconds())
}

func (m *Metrics) observeHealthAttempt(poll string, ok bool) {
	if m == nil {
		return
	}
	result := "fail"
	if ok {
		result = "ok"
	}
	m.healthAttempts.WithLabelValues(poll, result).Inc()
}

func (m *Metrics) observeBuild(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.imageBuilds.WithLabelValues(outcome).Inc()
}

// outcomeOf maps a command result to a metric label
func outcomeOf(res TransitionResult, err error) string {
	if err == nil {
		if res.Skipped {
			return "skipped"
		}
		return "ok"
	}
	if class := Classify(err); class != nil {
		return strings.ReplaceAll(class.Error(), " ", "_")
	}
	return "error"
}
