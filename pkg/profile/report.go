package profile

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/callwatch/callwatch/internal/safe"
)

// consoleTopEntries caps how many call sites the console summary lists.
const consoleTopEntries = 10

// Report is the structured document written at shutdown.
type Report struct {
	ProfileData []ReportEntry `json:"profile_data"`
	Summary     Summary       `json:"summary"`
}

// ReportEntry is one (api, caller) pair in the report, in insertion order of
// first observation.
type ReportEntry struct {
	APIName           string  `json:"api_name"`
	CallerFunction    string  `json:"caller_function"`
	ExecutionCount    uint64  `json:"execution_count"`
	PercentageOfTotal Decimal `json:"percentage_of_total"`
	DurationMS        Decimal `json:"duration_ms"`
}

// Summary holds the report totals.
type Summary struct {
	TotalDangerousCalls uint64 `json:"total_dangerous_calls"`
	UniqueCallSites     int    `json:"unique_call_sites"`
}

// Decimal is a float serialized with a fixed number of fraction digits, so a
// percentage of 50 renders as 50.00 rather than 50.
type Decimal struct {
	Value  float64
	Places int
}

// MarshalJSON renders the value with exactly Places fraction digits.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(d.Value, 'f', d.Places, 64)), nil
}

// UnmarshalJSON parses a plain JSON number. The fraction-digit count is not
// recoverable from the wire form and is left zero.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse decimal: %w", err)
	}
	d.Value = v
	return nil
}

// BuildReport converts a table snapshot into a report. Entries keep their
// insertion order; they are never sorted by frequency. With an empty snapshot
// the totals are zero and every percentage is 0.00.
func BuildReport(entries []Entry) Report {
	var total uint64
	for _, e := range entries {
		total += e.Count
	}

	data := make([]ReportEntry, 0, len(entries))
	for _, e := range entries {
		var pct float64
		if total > 0 {
			pct = float64(e.Count) * 100 / float64(total)
		}
		data = append(data, ReportEntry{
			APIName:           e.API,
			CallerFunction:    e.Caller,
			ExecutionCount:    e.Count,
			PercentageOfTotal: Decimal{Value: pct, Places: 2},
			DurationMS:        Decimal{Value: e.Last.Sub(e.First).Seconds() * 1000, Places: 3},
		})
	}

	return Report{
		ProfileData: data,
		Summary: Summary{
			TotalDangerousCalls: total,
			UniqueCallSites:     len(entries),
		},
	}
}

// WriteReportFile serializes the report as JSON and writes it atomically.
func WriteReportFile(path string, r Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := safe.WriteFileAtomic(path, data, 0o600); err != nil {
		return fmt.Errorf("write report file: %w", err)
	}
	return nil
}

// WriteConsoleSummary prints the human-readable summary: totals, the output
// path, then up to the first 10 entries in insertion order.
func WriteConsoleSummary(w io.Writer, r Report, path string) {
	fmt.Fprintf(w, "\n=== Dangerous API Profiling Results ===\n")
	fmt.Fprintf(w, "Total dangerous API calls: %d\n", r.Summary.TotalDangerousCalls)
	fmt.Fprintf(w, "Unique call sites: %d\n", r.Summary.UniqueCallSites)
	fmt.Fprintf(w, "Results written to: %s\n\n", path)

	fmt.Fprintf(w, "Top call sites:\n")
	for i, e := range r.ProfileData {
		if i >= consoleTopEntries {
			break
		}
		var pct float64
		if r.Summary.TotalDangerousCalls > 0 {
			pct = float64(e.ExecutionCount) * 100 / float64(r.Summary.TotalDangerousCalls)
		}
		fmt.Fprintf(w, "  %s() -> %s: %d calls (%.1f%%)\n", e.CallerFunction, e.APIName, e.ExecutionCount, pct)
	}
}
