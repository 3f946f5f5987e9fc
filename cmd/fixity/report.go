package main

import (
	"bufio"
	"fmt"
	"io"

	"fixity/internal/archive"
	"fixity/internal/diff"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	header = color.New(color.FgCyan, color.Bold)
)

func writeReport(w io.Writer, r diff.Report, porcelain bool) error {
	if porcelain {
		return printChanges(w, r)
	}
	return printReport(w, r)
}

// printChanges writes one uncolored "<kind>\t<path>" line per change, in
// path order, for scripts.
func printChanges(w io.Writer, r diff.Report) error {
	bw := bufio.NewWriter(w)
	for _, c := range r.Changes() {
		fmt.Fprintf(bw, "%s\t%s\n", c.Kind, c.Path)
	}
	return bw.Flush()
}

// printReport writes the report in the same layout as diff.Report.Format,
// coloring each group.
func printReport(w io.Writer, r diff.Report) error {
	bw := bufio.NewWriter(w)
	stats := r.Stats()

	header.Fprintln(bw, "Summary:")
	fmt.Fprintf(bw, "  Added files: %d\n", stats.Added)
	fmt.Fprintf(bw, "  Removed files: %d\n", stats.Removed)
	fmt.Fprintf(bw, "  Modified files: %d\n", stats.Modified)
	fmt.Fprintln(bw)
	header.Fprintln(bw, "Details:")

	for _, section := range []struct {
		title string
		paths []string
		c     *color.Color
	}{
		{"[Added files]", r.Added, green},
		{"[Removed files]", r.Removed, red},
		{"[Modified files]", r.Modified, yellow},
	} {
		fmt.Fprintln(bw, section.title)
		for _, p := range section.paths {
			section.c.Fprintf(bw, "  %q\n", p)
		}
	}

	return bw.Flush()
}

func printHistory(w io.Writer, reports []*archive.ReportRecord) error {
	bw := bufio.NewWriter(w)
	if len(reports) == 0 {
		fmt.Fprintln(bw, "No archived runs")
		return bw.Flush()
	}

	for _, r := range reports {
		fmt.Fprintf(bw, "%s  %s  %s  %s %s %s\n",
			formatTime(r.CreatedAt),
			r.ID,
			r.Name,
			green.Sprintf("+%d", r.Stats.Added),
			red.Sprintf("-%d", r.Stats.Removed),
			yellow.Sprintf("~%d", r.Stats.Modified),
		)
	}
	return bw.Flush()
}
