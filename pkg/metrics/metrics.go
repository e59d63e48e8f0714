// Package metrics aggregates per-pass latency and outcome counts for the
// priority-layered placement driver (spec §4.8), the way the teacher's
// pkg/instrumentation wires opencensus stats/view into a Prometheus
// exporter -- except this core has no daemon surface to serve them from,
// so the exporter's registry is rendered to Prometheus text format for a
// caller to print, never handed to an http.ServeMux.
package metrics

import (
	"bytes"
	"context"
	"time"

	ocprom "contrib.go.opencensus.io/exporter/prometheus"
	"github.com/pkg/errors"
	pclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"

	"github.com/intel/cons-tres-core/pkg/config"
)

// Outcome labels which driver pass (spec §4.8) produced a recorded
// attempt, or that the whole call was rejected outright.
type Outcome string

const (
	OutcomeProbe    Outcome = "pass0_probe"
	OutcomeIdle     Outcome = "pass1_idle"
	OutcomeRelaxed  Outcome = "pass2_relaxed"
	OutcomePeers    Outcome = "pass3_peers"
	OutcomeOwnRows  Outcome = "pass4_own_rows"
	OutcomeRejected Outcome = "rejected"
)

var (
	keyPartition = tag.MustNewKey("partition")
	keyOutcome   = tag.MustNewKey("outcome")

	passLatency = stats.Float64("coreselect/pass_latency_ms", "wall-clock time spent evaluating one driver pass", stats.UnitMilliseconds)
	passCount   = stats.Int64("coreselect/pass_total", "count of driver pass attempts by outcome", stats.UnitDimensionless)

	latencyView = &view.View{
		Name:        "coreselect/pass_latency_ms",
		Measure:     passLatency,
		Description: "distribution of per-pass latency",
		TagKeys:     []tag.Key{keyPartition, keyOutcome},
		Aggregation: view.Distribution(0, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500),
	}
	countView = &view.View{
		Name:        "coreselect/pass_total",
		Measure:     passCount,
		Description: "count of driver pass attempts by outcome",
		TagKeys:     []tag.Key{keyPartition, keyOutcome},
		Aggregation: view.Count(),
	}
)

func init() {
	if err := view.Register(latencyView, countView); err != nil {
		panic(errors.Wrap(err, "failed to register coreselect metrics views"))
	}
}

// RecordPass records one driver pass attempt's outcome and latency,
// tagged by the job's partition name. Safe to call with an empty
// partition name for jobs with no partition pointer.
func RecordPass(partition string, outcome Outcome, elapsed time.Duration) {
	ctx, err := tag.New(context.Background(),
		tag.Upsert(keyPartition, partition),
		tag.Upsert(keyOutcome, string(outcome)),
	)
	if err != nil {
		return
	}
	stats.Record(ctx, passCount.M(1), passLatency.M(float64(elapsed)/float64(time.Millisecond)))
}

// Exporter renders the accumulated opencensus view data as Prometheus
// text exposition format. Unlike the teacher's instrumentation service it
// is never wired to an HTTP handler; cmd/coreselectd calls Text and
// prints the result directly.
type Exporter struct {
	registry *pclient.Registry
	exporter *ocprom.Exporter
}

// NewExporter creates and registers a Prometheus view exporter under the
// given metrics namespace.
func NewExporter(namespace string) (*Exporter, error) {
	reg := pclient.NewRegistry()
	exp, err := ocprom.NewExporter(ocprom.Options{
		Namespace: namespace,
		Registry:  reg,
		OnError:   func(err error) {},
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create coreselect metrics exporter")
	}
	view.RegisterExporter(exp)
	period := time.Duration(config.GetOptions().MetricsReportingPeriod)
	if period <= 0 {
		period = time.Second
	}
	view.SetReportingPeriod(period)
	return &Exporter{registry: reg, exporter: exp}, nil
}

// Close unregisters the exporter from opencensus's view package. Safe to
// call once per Exporter returned by NewExporter.
func (e *Exporter) Close() {
	view.UnregisterExporter(e.exporter)
}

// Text renders every currently registered metric family in Prometheus
// text exposition format, for a caller to print to stdout or a log file.
func (e *Exporter) Text() (string, error) {
	families, err := e.registry.Gather()
	if err != nil {
		return "", errors.Wrap(err, "failed to gather coreselect metrics")
	}
	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return "", errors.Wrap(err, "failed to encode coreselect metrics")
		}
	}
	return buf.String(), nil
}
