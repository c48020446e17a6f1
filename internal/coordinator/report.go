package coordinator

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// WriteReport renders stats as a fixed-column, tab-aligned table: one
// row per pool plus a trailing TOTAL row.
func WriteReport(w io.Writer, stats []PoolStat) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tCAPACITY\tCREATED\tCHECKED_OUT\tFREE\tAVAILABLE")

	var totalCap, totalCreated, totalCheckedOut, totalFree, totalAvail int
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n",
			s.Name, s.Capacity, s.Created, s.CheckedOut, s.Free, s.Available)
		totalCap += s.Capacity
		totalCreated += s.Created
		totalCheckedOut += s.CheckedOut
		totalFree += s.Free
		totalAvail += s.Available
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%d\t%d\n",
		totalCap, totalCreated, totalCheckedOut, totalFree, totalAvail)

	return tw.Flush()
}
