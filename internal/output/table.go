package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Table renders a tab-aligned table on stderr, keeping stdout clean for
// machine-readable output.
func Table(headers []string, rows [][]string) {
	w := tabwriter.NewWriter(stderr, 0, 4, 2, ' ', 0)
	row(w, headers)
	for _, r := range rows {
		row(w, r)
	}
	_ = w.Flush()
}

func row(w io.Writer, cells []string) {
	fmt.Fprintln(w, strings.Join(cells, "\t"))
}
