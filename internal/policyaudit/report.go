package policyaudit

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// Write renders the report as human-readable text.
func (r Report) Write(w io.Writer) error {
	counts := map[Verdict]int{}
	for _, f := range r.Findings {
		counts[f.Verdict]++

		name := string(f.Class)
		if name == "" {
			name = f.Table
		}
		name = titleCaser.String(strings.ReplaceAll(name, "_", " "))
		if _, err := fmt.Fprintf(w, "%-14s %-12s %s\n", name, f.Table, strings.ToUpper(string(f.Verdict))); err != nil {
			return err
		}
		for _, detail := range f.Details {
			if _, err := fmt.Fprintf(w, "    - %s\n", detail); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintf(w, "\n%d equivalent, %d unoptimized, %d divergent\n",
		counts[Equivalent], counts[Unoptimized], counts[Divergent])
	return err
}
