package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/clinic-sim/clinic-sim/sim"
	"github.com/clinic-sim/clinic-sim/sim/replication"
	"github.com/clinic-sim/clinic-sim/sim/trace"
)

const (
	formatTable = "table"
	formatJSON  = "json"
)

// runReport is the JSON document written by `run --output json`.
type runReport struct {
	Config       sim.Config                  `json:"config"`
	Seed         int64                       `json:"seed"`
	Summary      *replication.Summary        `json:"summary"`
	Failed       []failedReplication         `json:"failed,omitempty"`
	Skipped      int                         `json:"skipped,omitempty"`
	Replications []*sim.Snapshot             `json:"replications"`
	Traces       map[int]*trace.TraceSummary `json:"traces,omitempty"`
}

type failedReplication struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

func newRunReport(settings *runSettings, res *replication.Result) runReport {
	rep := runReport{
		Config:       settings.Params.Config(),
		Seed:         settings.Options.BaseSeed,
		Summary:      res.Summary,
		Skipped:      res.Skipped,
		Replications: res.Snapshots,
	}
	for _, f := range res.Failed {
		rep.Failed = append(rep.Failed, failedReplication{Index: f.Index, Error: f.Err.Error()})
	}
	if len(res.Traces) > 0 {
		rep.Traces = make(map[int]*trace.TraceSummary, len(res.Traces))
		for i, st := range res.Traces {
			rep.Traces[i] = trace.Summarize(st)
		}
	}
	return rep
}

// writeReport renders the run result in the configured format.
func writeReport(w io.Writer, settings *runSettings, res *replication.Result) error {
	switch settings.Output {
	case formatJSON:
		data, err := json.MarshalIndent(newRunReport(settings, res), "", "  ")
		if err != nil {
			return fmt.Errorf("encoding report: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case formatTable, "":
		return writeTable(w, res)
	default:
		return fmt.Errorf("unknown output format %q", settings.Output)
	}
}

// writeTable prints one row per node with mean ± half-width columns.
func writeTable(w io.Writer, res *replication.Result) error {
	s := res.Summary
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Replications : %d (%.0f%% CI, %s)\n", s.Replications, s.Confidence*100, s.Method)
	if len(res.Failed) > 0 || res.Skipped > 0 {
		fmt.Fprintf(w, "Failed       : %d, skipped: %d\n", len(res.Failed), res.Skipped)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tSERVERS\tMEAN WAIT\tMEAN QUEUE\tUTILIZATION\tMEAN SOJOURN\tTHROUGHPUT")
	for _, name := range s.NodeNames() {
		n := s.Nodes[name]
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n", name, n.Servers,
			formatEstimate(n.MeanWait), formatEstimate(n.MeanQueueLength), formatEstimate(n.Utilization),
			formatEstimate(n.MeanSojourn), formatEstimate(n.Throughput))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Time in system : %s\n", formatEstimate(s.System.MeanTimeInSystem))
	fmt.Fprintf(w, "Lab fraction   : %s\n", formatEstimate(s.System.BranchFraction))
	_, err := fmt.Fprintf(w, "Exited/rep     : %s\n", formatEstimate(s.System.Exited))
	return err
}

func formatEstimate(e replication.Estimate) string {
	return fmt.Sprintf("%.4f ± %.4f", e.Mean, e.HalfWidth)
}
