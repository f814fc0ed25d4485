package simulator

import (
	"bytes"
	"fmt"
	"os"
	"strconv"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"
)

// Report summarizes a batch of SnapshotResult runs, grounded on the
// teacher's NinjaBot.Summary() (ninjabot.go): one table row per
// snapshot plus a totals footer, followed by a histogram of per-
// snapshot returns.
type Report struct {
	Results []SnapshotResult
}

// Print renders the table and histogram to stdout.
func (r Report) Print() {
	buffer := bytes.NewBuffer(nil)
	table := tablewriter.NewWriter(buffer)
	table.SetHeader([]string{"Snapshot Start", "Trades", "Profit"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)

	var totalProfit float64
	var totalTrades int
	profits := make([]float64, 0, len(r.Results))

	for _, res := range r.Results {
		table.Append([]string{
			strconv.FormatInt(res.StartIdx, 10),
			strconv.Itoa(res.NumTrades),
			fmt.Sprintf("%.2f", res.ProfitFiat),
		})
		totalProfit += res.ProfitFiat
		totalTrades += res.NumTrades
		profits = append(profits, res.ProfitFiat)
	}

	table.SetFooter([]string{
		"TOTAL",
		strconv.Itoa(totalTrades),
		fmt.Sprintf("%.2f", totalProfit),
	})
	table.Render()
	fmt.Println(buffer.String())

	if len(profits) < 2 {
		return
	}

	fmt.Println("------ PROFIT DISTRIBUTION -------")
	hist := histogram.Hist(15, profits)
	if err := histogram.Fprint(os.Stdout, hist, histogram.Linear(10)); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: render histogram: %v\n", err)
	}
	fmt.Println()
}

// Mean returns the arithmetic mean profit across every snapshot.
func (r Report) Mean() float64 {
	if len(r.Results) == 0 {
		return 0
	}
	var total float64
	for _, res := range r.Results {
		total += res.ProfitFiat
	}
	return round2(total / float64(len(r.Results)))
}
