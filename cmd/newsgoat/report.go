package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"

	"github.com/IshaanNene/NewsGoat/internal/storage"
	"github.com/IshaanNene/NewsGoat/internal/types"
	"github.com/IshaanNene/NewsGoat/pkg/newsgoat"
)

const maxCellWidth = 60

func printReport(w io.Writer, report *newsgoat.Report, elapsed time.Duration) {
	res := report.Result

	rows := [][]string{{"SOURCE", "TYPE", "CANDIDATES", "ACCEPTED", "TIME", "ERROR"}}
	for _, rep := range res.Reports {
		errText := ""
		if rep.Err != nil {
			errText = rep.Err.Error()
		}
		rows = append(rows, []string{
			rep.Name,
			rep.Type,
			fmt.Sprint(rep.Candidates),
			fmt.Sprint(rep.Accepted),
			rep.Duration.Round(time.Millisecond).String(),
			errText,
		})
	}

	fmt.Fprintf(w, "\nCrawl %s finished in %s (window %s)\n\n", res.RunID, elapsed.Round(time.Millisecond), res.Window)
	renderTable(w, rows)

	fmt.Fprintf(w, "\nItems:     %d accepted\n", len(res.Items))
	if report.EnrichErr != nil {
		fmt.Fprintf(w, "Enriched:  skipped (%v)\n", report.EnrichErr)
	} else {
		e := report.Enrich
		fmt.Fprintf(w, "Enriched:  %d new, %d cached, %d already done, %d failed\n", e.Enriched, e.Cached, e.Skipped, e.Failed)
	}
	if report.OutputPath != "" {
		fmt.Fprintf(w, "Output:    %s\n", report.OutputPath)
	}
}

// renderTable writes rows as aligned columns. Widths are measured in
// terminal cells so Polish diacritics and wide characters line up.
func renderTable(w io.Writer, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	cols := 0
	for _, row := range rows {
		cols = max(cols, len(row))
	}

	widths := make([]int, cols)
	for _, row := range rows {
		for i, cell := range row {
			cell = runewidth.Truncate(cell, maxCellWidth, "…")
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	for _, row := range rows {
		var sb strings.Builder
		for i := 0; i < cols; i++ {
			cell := ""
			if i < len(row) {
				cell = runewidth.Truncate(row[i], maxCellWidth, "…")
			}
			if i < cols-1 {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
				sb.WriteString("  ")
			} else {
				sb.WriteString(cell)
			}
		}
		fmt.Fprintln(w, strings.TrimRight(sb.String(), " "))
	}
}

func loadItems(path string) ([]*types.NewsItem, error) {
	return storage.LoadJSON(path)
}

func saveItems(path string, items []*types.NewsItem) error {
	if err := storage.WriteJSON(path, items); err != nil {
		return &types.StorageError{Backend: "json", Err: err}
	}
	return nil
}
