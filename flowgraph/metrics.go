package flowgraph

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/viant/flowgraph/trace"
)

// Metrics are optional counters the CLI can expose via --metrics-addr
// (SPEC_FULL §2). They are package-level so a single process-wide registry
// can be shared across recordings; a CLI invocation that never enables
// metrics never touches this file beyond variable initialisation.
var (
	EventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgraph_events_total",
		Help: "Total trace events consumed by the flow-graph builder.",
	})
	NodesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "flowgraph_nodes_total",
		Help: "Total call-site nodes created across all (sub)graphs.",
	})
)

// Registry collects the flowgraph package's metrics into r, returning it
// for convenient chaining from the CLI.
func Registry(r *prometheus.Registry) *prometheus.Registry {
	r.MustRegister(EventsTotal, NodesTotal)
	return r
}

// InstrumentedBuilder wraps a Builder so every pushed event and created
// node is counted, without requiring Builder itself to know whether
// metrics are enabled for a given run.
type InstrumentedBuilder struct {
	*Builder
}

func Instrument(b *Builder) *InstrumentedBuilder {
	return &InstrumentedBuilder{Builder: b}
}

func (i *InstrumentedBuilder) PushEvent(ev *trace.Event) error {
	EventsTotal.Inc()
	nodesBefore := len(i.Graph().Nodes)
	err := i.Builder.PushEvent(ev)
	NodesTotal.Add(float64(len(i.Graph().Nodes) - nodesBefore))
	return err
}
