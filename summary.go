package perf

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Aswintechie/ttnn-performance-dashboard/runner"
)

// printSummary writes the per-operation results table and the run totals.
func printSummary(w io.Writer, s *runner.Summary) {
	md := s.Results.Metadata

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("Eltwise Performance Results (%s)", runner.FormatDuration(s.Elapsed)))
	t.AppendHeader(table.Row{"Operation", "Runs", "Avg (ns)", "Stdev (ns)", "Min (ns)", "Max (ns)"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Operation", WidthMax: 40, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Runs", Align: text.AlignRight},
		{Name: "Avg (ns)", Align: text.AlignRight},
		{Name: "Stdev (ns)", Align: text.AlignRight},
		{Name: "Min (ns)", Align: text.AlignRight},
		{Name: "Max (ns)", Align: text.AlignRight},
	})
	for _, r := range s.Results.Results {
		t.AppendRow(table.Row{
			r.OperationName,
			r.SuccessfulRuns,
			fmt.Sprintf("%.2f", r.AverageNs),
			fmt.Sprintf("%.2f", r.StdDeviationNs),
			fmt.Sprintf("%.2f", r.MinNs),
			fmt.Sprintf("%.2f", r.MaxNs),
		})
	}
	t.AppendFooter(table.Row{"Total", md.TotalTests, "", "", "", ""})
	t.Render()

	fmt.Fprintf(w, "Run ID: %s\n", s.RunID)
	fmt.Fprintf(w, "Revision: %s\n", md.RevisionID)
	fmt.Fprintf(w, "Total time: %s\n", runner.FormatDuration(s.Elapsed))
	if len(s.Executed) > 0 {
		fmt.Fprintf(w, "Average time per test: %s\n", runner.FormatDuration(s.PerTest))
	}
	fmt.Fprintf(w, "Successful: %d/%d\n", md.SuccessfulTests, md.TotalTests)
	fmt.Fprintf(w, "Failed: %d\n", md.FailedTests)
	if len(md.FailedTestNames) > 0 {
		fmt.Fprintf(w, "Failed tests: %s\n", strings.Join(md.FailedTestNames, ", "))
		if !s.Rerun {
			fmt.Fprintln(w, "Run again with --rerun to retry only the failed and remaining tests")
		}
	}
	if s.Resumed != "" {
		fmt.Fprintf(w, "Resumed from: %s\n", s.Resumed)
	}
	if s.Saved() {
		fmt.Fprintf(w, "Results saved to: %s\n", s.Final.JSON)
		fmt.Fprintf(w, "CSV saved to: %s\n", s.Final.CSV)
	}
	switch {
	case s.Uploaded:
		fmt.Fprintln(w, "Results uploaded to the dashboard")
	case s.UploadErr != nil:
		fmt.Fprintf(w, "Upload failed: %v\n", s.UploadErr)
	}
	if s.Stopped {
		fmt.Fprintln(w, "Run was interrupted before all tests completed")
	}
}
