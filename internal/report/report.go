// Package report renders a finished run for people and machines.
//
// The package is presentation only: it consumes run.Report and writes
// either a human-readable summary or a JSON response envelope. It never
// alters the report it is given.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/roach88/testrig/internal/run"
)

// Output formats accepted by the renderer.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Error codes carried in the JSON response envelope.
const (
	CodeRunFatal    = "E_RUN_FATAL"
	CodeUnitsFailed = "E_UNITS_FAILED"
)

// Response is the envelope wrapping every JSON report.
type Response struct {
	Status string      `json:"status"` // "ok" or "error"
	Data   *run.Report `json:"data,omitempty"`
	Error  *Error      `json:"error,omitempty"`
}

// Error is the machine-readable failure summary of a response.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Renderer writes reports in a configured format.
type Renderer struct {
	Format string
	Writer io.Writer
}

// Render writes the report. Any format other than "json" renders text.
func (r *Renderer) Render(rep *run.Report) error {
	if r.Format == FormatJSON {
		return WriteJSON(r.Writer, rep)
	}
	return WriteText(r.Writer, rep)
}

// WriteJSON writes the report as an indented JSON response envelope. The
// status is "error" when the run ended in a fatal error or any unit
// failed or errored.
func WriteJSON(w io.Writer, rep *run.Report) error {
	resp := Response{Status: "ok", Data: rep}
	if e := responseError(rep); e != nil {
		resp.Status = "error"
		resp.Error = e
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func responseError(rep *run.Report) *Error {
	if rep.Fatal != "" {
		return &Error{Code: CodeRunFatal, Message: rep.Fatal}
	}
	if n := rep.Result.Failed + rep.Result.Errored; n > 0 {
		return &Error{Code: CodeUnitsFailed, Message: fmt.Sprintf("%d unit(s) failed", n)}
	}
	return nil
}

// WriteText writes the report for humans: a store table when stores were
// provisioned, the unit tallies, then warnings, kept paths, and the
// verdict.
func WriteText(w io.Writer, rep *run.Report) error {
	if len(rep.Stores) > 0 {
		tw := table.NewWriter()
		tw.SetStyle(table.StyleLight)
		tw.AppendHeader(table.Row{"Store", "Mode", "Tables"})
		for _, s := range rep.Stores {
			tw.AppendRow(table.Row{s.Name, s.Mode, s.Tables})
		}
		fmt.Fprintln(w, tw.Render())
	}

	r := rep.Result
	fmt.Fprintf(w, "Run Summary: %d passed, %d failed, %d errored, %d skipped (%d total in %s)\n",
		r.Passed, r.Failed, r.Errored, r.Skipped, r.Total(), rep.Duration)

	for _, warn := range rep.TeardownWarnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	if len(rep.KeptPaths) > 0 {
		fmt.Fprintln(w, "Stores kept:")
		for _, p := range rep.KeptPaths {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}

	switch {
	case rep.Fatal != "":
		fmt.Fprintf(w, "✗ Run aborted: %s (reached %s)\n", rep.Fatal, rep.State)
	case r.Failed+r.Errored > 0:
		fmt.Fprintf(w, "✗ %d unit(s) failed\n", r.Failed+r.Errored)
	case r.Total() == 0:
		fmt.Fprintln(w, "No units ran.")
	default:
		fmt.Fprintln(w, "✓ All units passed")
	}
	return nil
}
