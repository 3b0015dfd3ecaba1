// Package extract pulls named financial metrics out of retrieved snippet
// text and arranges them into a per-document comparison table.
package extract

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"

	"github.com/finrag/finrag/pkg/corpus"
)

// NotAvailable marks a metric that could not be found in the text.
const NotAvailable = "N/A"

// DefaultMetrics are the metrics extracted when the caller names none.
func DefaultMetrics() []string {
	return []string{"Revenue", "Net Profit", "Gross Profit", "Total Assets", "Total Liabilities"}
}

// amount matches figures like 1,234,567.89 with optional $ handled by the
// surrounding patterns.
const amount = `(\d{1,3}(?:,\d{3})*(?:\.\d{2})?)`

// Metrics scans text for each named metric and returns its first matched
// amount, thousands separators stripped. Missing metrics map to NotAvailable.
func Metrics(text string, names []string) map[string]string {
	if len(names) == 0 {
		names = DefaultMetrics()
	}

	out := make(map[string]string, len(names))
	for _, name := range names {
		out[name] = NotAvailable

		quoted := regexp.QuoteMeta(name)
		patterns := []string{
			`(?i)` + quoted + `\s*[:\-]?\s*\$?\s*` + amount,
			`(?i)` + quoted + `\s*\(?\$?` + amount + `\)?`,
		}
		for _, p := range patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				continue
			}
			if m := re.FindStringSubmatch(text); m != nil {
				out[name] = strings.ReplaceAll(m[1], ",", "")
				break
			}
		}
	}
	return out
}

// Table is a metric-by-document comparison: one row per metric, one
// column per document.
type Table struct {
	Metrics   []string                     `json:"metrics"`
	Documents []string                     `json:"documents"`
	Values    map[string]map[string]string `json:"values"` // document -> metric -> value
}

// BuildTable groups search results by document filename, concatenates each
// document's snippets and extracts the named metrics per document.
// Document order follows first appearance in results, i.e. relevance.
func BuildTable(results []corpus.SearchResult, names []string) Table {
	if len(names) == 0 {
		names = DefaultMetrics()
	}

	var docs []string
	combined := make(map[string]*strings.Builder)
	for _, r := range results {
		sb, ok := combined[r.Filename]
		if !ok {
			sb = &strings.Builder{}
			combined[r.Filename] = sb
			docs = append(docs, r.Filename)
		}
		sb.WriteString(" ")
		sb.WriteString(r.Text)
	}

	values := make(map[string]map[string]string, len(docs))
	for _, doc := range docs {
		values[doc] = Metrics(combined[doc].String(), names)
	}

	return Table{Metrics: names, Documents: docs, Values: values}
}

// CSV encodes the table with a Metric column followed by one column per
// document, for download by dashboard clients.
func (t Table) CSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append([]string{"Metric"}, t.Documents...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, metric := range t.Metrics {
		row := make([]string, 0, len(t.Documents)+1)
		row = append(row, metric)
		for _, doc := range t.Documents {
			row = append(row, t.Values[doc][metric])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write CSV row: %w", err)
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
