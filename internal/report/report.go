// Package report renders experiment results as terminal tables or JSON.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sha1n/mathfuse/internal/evaluation"
	"github.com/sha1n/mathfuse/internal/experiment"
)

// Output formats.
const (
	FormatTable = "table"
	FormatJSON  = "json"
)

// PrimeMarker is appended to metric names computed over assessed hits only.
const PrimeMarker = "'"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	titleStyle  = lipgloss.NewStyle().Bold(true)
)

// MetricName returns the display name of a metric, marked when prime.
func MetricName(metric string, prime bool) string {
	if prime && metric != evaluation.MetricMRT {
		return metric + PrimeMarker
	}
	return metric
}

// Header describes the candidate set the figures were computed on.
func Header(opts evaluation.Options) string {
	mode := "all hits"
	if opts.Prime {
		mode = "assessed hits only (" + PrimeMarker + ")"
	}
	return fmt.Sprintf("top-k %d, %s, relevance threshold %d", opts.TopK, mode, opts.Threshold)
}

// Write renders r in the given format.
func Write(w io.Writer, r *experiment.Report, format string) error {
	switch format {
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatTable, "":
		return WriteTable(w, r)
	}
	return fmt.Errorf("unknown report format %q", format)
}

// WriteTable renders the summary table followed by the baseline comparison.
func WriteTable(w io.Writer, r *experiment.Report) error {
	prime := r.Options.Prime
	metrics := []string{evaluation.MetricNDCG, evaluation.MetricP10, evaluation.MetricMAP}

	headers := []string{"experiment"}
	for _, m := range metrics {
		headers = append(headers, MetricName(m, prime))
	}
	headers = append(headers, evaluation.MetricMRT+" (ms)", "judged")

	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		s := res.Summary
		row := []string{s.Name}
		for _, m := range metrics {
			row = append(row, formatMetric(s.Value(m)))
		}
		row = append(row,
			strconv.FormatFloat(s.MeanResponseMillis(), 'f', 1, 64),
			fmt.Sprintf("%d/%d", s.JudgedQueries, s.Queries),
		)
		rows = append(rows, row)
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(Header(r.Options)))
	b.WriteString("\n")
	b.WriteString(newTable(headers, rows).Render())
	b.WriteString("\n")

	if len(r.Comparisons) > 0 {
		b.WriteString(titleStyle.Render("vs. " + r.Baseline + " (improved/degraded queries)"))
		b.WriteString("\n")
		b.WriteString(newTable(comparisonHeaders(prime), comparisonRows(r.Comparisons)).Render())
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func comparisonHeaders(prime bool) []string {
	headers := []string{"experiment"}
	for _, m := range evaluation.ComparedMetrics {
		headers = append(headers, MetricName(m, prime))
	}
	return headers
}

func comparisonRows(cs []evaluation.Comparison) [][]string {
	rows := make([][]string, 0, len(cs))
	for _, c := range cs {
		row := []string{c.Run}
		for _, m := range evaluation.ComparedMetrics {
			d := c.Deltas[m]
			row = append(row, fmt.Sprintf("+%d/-%d", d.Improved, d.Degraded))
		}
		rows = append(rows, row)
	}
	return rows
}

func newTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func formatMetric(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

type jsonResult struct {
	evaluation.Summary
	MeanResponseMs float64 `json:"mrt_ms"`
	RunFile        string  `json:"run_file,omitempty"`
}

type jsonReport struct {
	TopK        int                     `json:"top_k"`
	Prime       bool                    `json:"prime"`
	Threshold   int                     `json:"threshold"`
	Model       string                  `json:"model,omitempty"`
	Topics      int                     `json:"topics"`
	Baseline    string                  `json:"baseline,omitempty"`
	Results     []jsonResult            `json:"results"`
	Comparisons []evaluation.Comparison `json:"comparisons,omitempty"`
}

// WriteJSON renders r as an indented JSON document.
func WriteJSON(w io.Writer, r *experiment.Report) error {
	out := jsonReport{
		TopK:        r.Options.TopK,
		Prime:       r.Options.Prime,
		Threshold:   r.Options.Threshold,
		Model:       string(r.Model),
		Topics:      r.Topics,
		Baseline:    r.Baseline,
		Results:     make([]jsonResult, 0, len(r.Results)),
		Comparisons: r.Comparisons,
	}
	for _, res := range r.Results {
		out.Results = append(out.Results, jsonResult{
			Summary:        res.Summary,
			MeanResponseMs: res.Summary.MeanResponseMillis(),
			RunFile:        res.RunFile,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
