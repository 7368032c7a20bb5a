package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"petstay-backend/internal/acquire"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

func renderResults(w io.Writer, results []acquire.Result) {
	sorted := make([]acquire.Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].TargetID < sorted[j].TargetID
	})

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Target", "Status", "Strategy", "Attempts", "Records", "Took", "Error"})
	for _, r := range sorted {
		t.AppendRow(table.Row{
			r.TargetID,
			r.Status.String(),
			r.Strategy,
			r.AttemptsUsed,
			len(r.Records),
			r.Duration.Round(time.Millisecond),
			truncate(r.ErrorDetail, 60),
		})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()

	summary := acquire.Summarize(results)
	fmt.Fprintf(w, "%s, %d records\n", summary.FailureLine(), summary.Records)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}

func writeResults(path string, results []acquire.Result) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	err = enc.Encode(results)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return nil
}
