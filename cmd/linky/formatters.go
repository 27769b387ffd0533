package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/pevans/linky/archive"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printStatsTable prints archive totals followed by bucket counts, largest
// first.
func printStatsTable(w io.Writer, stats *archive.Stats) {
	fmt.Fprintf(w, "Entries:       %d\n", stats.TotalEntries)
	fmt.Fprintf(w, "Size:          %s\n", formatBytes(stats.TotalSizeBytes))
	if stats.LastEviction != nil {
		fmt.Fprintf(w, "Last eviction: %s\n", stats.LastEviction.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(w, "Last eviction: never")
	}

	if len(stats.PerBucket) == 0 {
		return
	}

	buckets := make([]string, 0, len(stats.PerBucket))
	for b := range stats.PerBucket {
		buckets = append(buckets, b)
	}
	slices.SortFunc(buckets, func(a, b string) int {
		if d := stats.PerBucket[b] - stats.PerBucket[a]; d != 0 {
			if d > 0 {
				return 1
			}
			return -1
		}
		return strings.Compare(a, b)
	})

	fmt.Fprintln(w)
	for _, b := range buckets {
		fmt.Fprintf(w, "  %6d  %s\n", stats.PerBucket[b], b)
	}
}

// printEntries prints one block per entry. Content is shown in full when
// withContent is set, otherwise as a one-line preview.
func printEntries(w io.Writer, entries []archive.Entry, withContent bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No entries to display.")
		return
	}

	for _, e := range entries {
		fmt.Fprintln(w, e.URL)
		fmt.Fprintf(w, "   %s | Created: %s | Accessed: %s | %s\n",
			e.Bucket,
			e.CreatedAt.Format("2006-01-02 15:04"),
			e.AccessedAt.Format("2006-01-02 15:04"),
			formatBytes(e.SizeBytes),
		)
		if withContent {
			fmt.Fprintln(w)
			fmt.Fprintln(w, e.Content)
		} else if preview := previewLine(e.Content, 100); preview != "" {
			fmt.Fprintf(w, "   %s\n", preview)
		}
		fmt.Fprintln(w)
	}
}

// previewLine returns the first non-empty line, cut to width runes.
func previewLine(content string, width int) string {
	for line := range strings.SplitSeq(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if runes := []rune(line); len(runes) > width {
			return string(runes[:width-3]) + "..."
		}
		return line
	}
	return ""
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
