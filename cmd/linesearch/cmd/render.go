package cmd

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/linesearch/internal/searcher/provenance"
)

var (
	okLabel   = color.New(color.FgGreen, color.Bold).SprintFunc()
	docLabel  = color.New(color.FgCyan, color.Bold).SprintFunc()
	lineLabel = color.New(color.FgYellow).SprintFunc()
	dimLabel  = color.New(color.Faint).SprintFunc()
)

func renderResults(w io.Writer, resp *searcher.Response) {
	if len(resp.Results) == 0 {
		fmt.Fprintf(w, "no matches for %q\n", resp.Query)
		return
	}
	fmt.Fprintf(w, "%d of %d documents match %q\n\n", len(resp.Results), resp.TotalHits, resp.Query)
	for _, r := range resp.Results {
		fmt.Fprintf(w, "%s %s\n", docLabel(r.DocID), dimLabel(fmt.Sprintf("score %.4f", r.Score)))
		if len(r.LineNumbers) == 0 {
			fmt.Fprintf(w, "  %s\n", r.Highlight)
		}
		for i, n := range r.LineNumbers {
			fmt.Fprintf(w, "  %s %s\n", lineLabel(fmt.Sprintf("%4d:", n)), r.LineTexts[i])
		}
		fmt.Fprintln(w)
	}
}

func renderLines(w io.Writer, docID string, lines provenance.Lines) {
	if len(lines.Numbers) == 0 {
		fmt.Fprintf(w, "no matching lines in %s\n", docID)
		return
	}
	for i, n := range lines.Numbers {
		fmt.Fprintf(w, "%s%s %s\n", docLabel(docID), lineLabel(fmt.Sprintf(":%d:", n)), lines.Texts[i])
	}
}
