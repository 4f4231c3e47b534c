// Package recorder is the entry point of §4.9: it wires the parser,
// normaliser, trace-rewriter, tracer runtime and flow-graph builder into one
// call that takes a program's source and returns its finished flow graph.
// Grounded on the teacher's (`viant/linager`) `analyzer.Analyzer`/
// `AnalyzeDir` as the shape of "one service struct, built with functional
// Options, fronting an `afs.Service` for all file IO" (`analyzer/package.go`,
// `analyzer/option.go`).
package recorder

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/viant/afs"

	"github.com/viant/flowgraph/annotation"
	"github.com/viant/flowgraph/flowgraph"
	"github.com/viant/flowgraph/graphml"
	"github.com/viant/flowgraph/lang/normalize"
	"github.com/viant/flowgraph/lang/parser"
	"github.com/viant/flowgraph/trace"
	"github.com/viant/flowgraph/trace/objtrack"
)

// Option configures a Recorder, mirroring the teacher's `analyzer.Option`
// functional-parameter style.
type Option func(*Recorder)

// WithAnnotator attaches an Annotator; a Recorder with none built calls
// every lookup against a nil Annotator, which the builder already treats as
// "annotation always missing" (§7 AnnotationMissing).
func WithAnnotator(ann *annotation.Annotator) Option {
	return func(r *Recorder) { r.ann = ann }
}

// WithBuilderOptions sets the flowgraph.Options the builder is constructed
// with (§4.8 step 5 "Slot capture").
func WithBuilderOptions(opts flowgraph.Options) Option {
	return func(r *Recorder) { r.builderOpts = opts }
}

// WithFS overrides the afs.Service used for source IO and interchange
// output, defaulting to afs.New() (teacher: `analyzer.go`'s `fs: afs.New()`).
func WithFS(fs afs.Service) Option {
	return func(r *Recorder) { r.fs = fs }
}

// WithLogger overrides the logrus entry recorder operations log through.
func WithLogger(log *logrus.Entry) Option {
	return func(r *Recorder) { r.log = log }
}

// Recorder runs one program through the full pipeline and produces its
// finished Graph.
type Recorder struct {
	fs          afs.Service
	ann         *annotation.Annotator
	builderOpts flowgraph.Options
	log         *logrus.Entry
}

// New constructs a Recorder, applying opts over sensible defaults.
func New(opts ...Option) *Recorder {
	r := &Recorder{
		fs:  afs.New(),
		log: logrus.WithField("component", "recorder"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecordURL downloads the program source at sourceURL, names the recording
// after the module qualifying its host project (recorder/workdir.go), and
// records it (§4.9).
func (r *Recorder) RecordURL(ctx context.Context, sourceURL string) (*flowgraph.Graph, error) {
	r.log.WithField("source", sourceURL).Debug("loading program source")
	src, err := r.fs.DownloadWithURL(ctx, sourceURL)
	if err != nil {
		return nil, fmt.Errorf("recorder: download %s: %w", sourceURL, err)
	}
	module := ProjectName(sourceURL)
	return r.Record(ctx, module, src)
}

// Record runs the full pipeline over src's program text, tagging every
// traced call with module as its qualifying module name (§4.1).
func (r *Recorder) Record(ctx context.Context, module string, src []byte) (*flowgraph.Graph, error) {
	prog, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("recorder: parse: %w", err)
	}

	normalized, err := normalize.Program(prog)
	if err != nil {
		return nil, fmt.Errorf("recorder: normalize: %w", err)
	}

	traced, err := normalize.Rewrite(normalized)
	if err != nil {
		return nil, fmt.Errorf("recorder: trace-transform: %w", err)
	}

	tracer := trace.NewTracer()
	tracker := objtrack.New()
	interp := trace.NewInterp(module, tracer, tracker)

	r.log.WithField("module", module).Info("running traced program")
	_, runErr := interp.Run(traced)
	if runErr != nil {
		r.log.WithError(runErr).WithField("events", len(tracer.Events())).
			Warn("traced program raised; building graph from the partial event stream")
	}

	// §9 Open Question (b): on a raised exception the scope stack's
	// in-flight entries are abandoned without synthetic Return events; the
	// partial event stream is still built into a graph and returned
	// alongside the error rather than discarded, so a caller can inspect
	// how far the recording got.
	builder := flowgraph.New(ctx, r.ann, tracker, r.builderOpts)
	built := flowgraph.Instrument(builder)
	for _, ev := range tracer.Events() {
		if err := built.PushEvent(ev); err != nil {
			return builder.Graph(), fmt.Errorf("recorder: build graph: %w", err)
		}
	}

	graph := builder.Graph()
	if runErr != nil {
		return graph, fmt.Errorf("recorder: run: %w", runErr)
	}
	r.log.WithFields(logrus.Fields{
		"module": module,
		"nodes":  len(graph.Nodes),
		"edges":  len(graph.Edges),
	}).Info("recording complete")
	return graph, nil
}

// WriteGraphML renders graph in the §6 interchange format and uploads it to
// outURL through the Recorder's afs.Service, exactly as `analyzer/package.go`
// reads sources through the same service it walks directories with.
func (r *Recorder) WriteGraphML(ctx context.Context, graph *flowgraph.Graph, outURL string) error {
	var buf bytes.Buffer
	if err := graphml.Write(&buf, graph); err != nil {
		return fmt.Errorf("recorder: render graphml: %w", err)
	}
	if err := r.fs.Upload(ctx, outURL, 0644, &buf); err != nil {
		return fmt.Errorf("recorder: upload %s: %w", outURL, err)
	}
	r.log.WithField("output", outURL).Info("wrote graphml")
	return nil
}
