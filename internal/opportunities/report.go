package opportunities

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/olekukonko/tablewriter"
)

// RenderTable writes a scan report, highest score first.
func RenderTable(w io.Writer, records []Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "no opportunities detected")
		return
	}

	sorted := append([]Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	table := tablewriter.NewWriter(w)
	table.Header("#", "Symbol", "Score", "Pattern", "Consensus", "HC", "Bulls", "Bears", "Price")

	for i, rec := range sorted {
		consensus := rec.ConsensusPosition
		if consensus == "" {
			consensus = "-"
		}
		table.Append(
			fmt.Sprintf("%d", i+1),
			rec.Symbol,
			fmt.Sprintf("%.1f", rec.Score),
			rec.WinningPattern,
			fmt.Sprintf("%s (%s)", consensus, rec.ConsensusStrength),
			fmt.Sprintf("%d/%d", rec.HighConvictionCount, rec.TotalPersonas),
			strings.Join(rec.BullishPersonaIDs, ","),
			strings.Join(rec.BearishPersonaIDs, ","),
			fmt.Sprintf("%.2f", rec.PriceAtScan),
		)
	}

	table.Render()
	fmt.Fprintln(w, "  HC = high-conviction opinions / personas heard")
}
