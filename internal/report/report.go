// Package report renders backtest result tables as Markdown and HTML documents.
package report

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
	"github.com/montanaflynn/stats"

	"happycast/domain/backtest"
)

// DefaultTitle heads documents rendered without an explicit title
const DefaultTitle = "Backtest report"

// ModelSummary is the aggregate of one model's RMSE column against its naive baseline
type ModelSummary struct {
	Model         string  `json:"model"`
	Column        string  `json:"column"`
	NaiveColumn   string  `json:"naive_column"`
	Countries     int     `json:"countries"`
	BeatsNaive    int     `json:"beats_naive"`
	MeanRMSE      float64 `json:"mean_rmse"`
	MeanNaiveRMSE float64 `json:"mean_naive_rmse"`
}

// Summary aggregates a result table
type Summary struct {
	Countries int            `json:"countries"`
	Models    []ModelSummary `json:"models"`
}

// Summarize counts, per model, the countries where its RMSE is strictly below
// the naive RMSE of the same side of the table
func Summarize(table *backtest.ResultTable) Summary {
	sum := Summary{Countries: table.Len()}
	for i, col := range table.Columns {
		model, ok := rmseModel(col)
		if !ok || model == backtest.NaiveModel {
			continue
		}
		naiveCol := pairedNaive(table.Columns, i)
		ms := ModelSummary{Model: model, Column: col, NaiveColumn: naiveCol}

		var rmse, naive []float64
		for _, row := range table.Rows {
			v, ok := row.Get(col)
			if !ok {
				continue
			}
			ms.Countries++
			rmse = append(rmse, v)
			if n, ok := row.Get(naiveCol); ok {
				naive = append(naive, n)
				if v < n {
					ms.BeatsNaive++
				}
			}
		}
		ms.MeanRMSE, _ = stats.Mean(rmse)
		ms.MeanNaiveRMSE, _ = stats.Mean(naive)
		sum.Models = append(sum.Models, ms)
	}
	return sum
}

// rmseModel extracts the model of a <model>_RMSE column, ignoring merge suffixes
func rmseModel(col string) (string, bool) {
	base := strings.TrimSuffix(strings.TrimSuffix(col, backtest.LeftSuffix), backtest.RightSuffix)
	if !strings.HasSuffix(base, "_RMSE") {
		return "", false
	}
	return strings.TrimSuffix(base, "_RMSE"), true
}

// pairedNaive returns the naive RMSE column closest after position i, or the
// closest before it when none follows
func pairedNaive(columns []string, i int) string {
	isNaive := func(c string) bool {
		m, ok := rmseModel(c)
		return ok && m == backtest.NaiveModel
	}
	for j := i + 1; j < len(columns); j++ {
		if isNaive(columns[j]) {
			return columns[j]
		}
	}
	for j := i - 1; j >= 0; j-- {
		if isNaive(columns[j]) {
			return columns[j]
		}
	}
	return backtest.MetricColumn(backtest.NaiveModel, "RMSE")
}

// Render writes the table as a Markdown document with a summary section
func Render(w io.Writer, title string, table *backtest.ResultTable) error {
	if title == "" {
		title = DefaultTitle
	}
	sum := Summarize(table)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	fmt.Fprintf(&b, "Countries evaluated: %d.\n\n", sum.Countries)

	if len(sum.Models) > 0 {
		b.WriteString("## Summary\n\n")
		for _, m := range sum.Models {
			fmt.Fprintf(&b, "- %s beats the naive baseline on RMSE in %d of %d countries.\n", m.Model, m.BeatsNaive, m.Countries)
		}
		b.WriteString("\n| model | countries | beats naive | mean RMSE | mean naive RMSE |\n")
		b.WriteString("|---|---:|---:|---:|---:|\n")
		for _, m := range sum.Models {
			fmt.Fprintf(&b, "| %s | %d | %d | %.4f | %.4f |\n", m.Model, m.Countries, m.BeatsNaive, m.MeanRMSE, m.MeanNaiveRMSE)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Results\n\n")
	b.WriteString("| " + backtest.ColumnCountry)
	for _, c := range table.Columns {
		b.WriteString(" | " + c)
	}
	b.WriteString(" |\n|---")
	for range table.Columns {
		b.WriteString("|---:")
	}
	b.WriteString("|\n")
	for _, row := range table.Rows {
		b.WriteString("| " + escape(string(row.Country)))
		for _, c := range table.Columns {
			b.WriteString(" | ")
			if v, ok := row.Get(c); ok {
				fmt.Fprintf(&b, "%.4f", v)
			}
		}
		b.WriteString(" |\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderHTML renders the Markdown document to a standalone HTML page
func RenderHTML(w io.Writer, title string, table *backtest.ResultTable) error {
	var md bytes.Buffer
	if err := Render(&md, title, table); err != nil {
		return err
	}

	p := parser.NewWithExtensions(parser.CommonExtensions | parser.Tables)
	if title == "" {
		title = DefaultTitle
	}
	renderer := html.NewRenderer(html.RendererOptions{
		Title: title,
		Flags: html.CommonFlags | html.CompletePage,
	})
	_, err := w.Write(markdown.ToHTML(md.Bytes(), p, renderer))
	return err
}

func escape(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
