package main

import (
	"io"

	"github.com/Travis-Britz/ipupdate"
	"github.com/olekukonko/tablewriter"
)

func printSummary(w io.Writer, results []ipupdate.Result) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Domain", "Status", "Previous", "Current", "Error"})
	table.SetAutoWrapText(false)
	for _, r := range results {
		var msg string
		if r.Err != nil {
			msg = r.Err.Error()
		}
		table.Append([]string{r.Domain, r.Status.String(), r.Previous, r.Current, msg})
	}
	table.Render()
}
