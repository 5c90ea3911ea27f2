// Command analyze_backtests tabulates the trade CSVs written by backtest_runner.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"hedgeFundSim/internal/domain"
	"hedgeFundSim/internal/strategy/analytics"
	"hedgeFundSim/internal/utils"
)

func main() {
	dir := flag.String("dir", "data", "directory holding backtest trade CSVs")
	prefix := flag.String("prefix", "backtest_trades", "trade file name prefix")
	flag.Parse()

	files, err := findBacktestFiles(*dir, *prefix)
	if err != nil {
		log.Fatalf("Error finding backtest files: %v", err)
	}
	if len(files) == 0 {
		log.Println("No backtest files found. Run the backtest runner first.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "File\tTrades\tSells\tWinRate\tAvgReturn\tAvgWin\tAvgLoss\tProfitFactor\tCommission\t")
	byFile := make(map[string][]domain.Trade, len(files))
	for _, file := range files {
		trades, err := utils.ReadTradesFromCSV(file)
		if err != nil {
			log.Printf("Error reading trades from %s: %v", file, err)
			continue
		}
		flat := make([]domain.Trade, len(trades))
		for i, t := range trades {
			flat[i] = *t
		}
		byFile[file] = flat

		stats := analytics.AnalyzeTrades(flat)
		fmt.Fprintf(w, "%s\t%d\t%d\t%.2f%%\t%.2f%%\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			filepath.Base(file),
			stats.TotalTrades,
			stats.SellTrades,
			stats.WinRate*100,
			stats.AverageTradeReturn*100,
			stats.AverageWin,
			stats.AverageLoss,
			stats.ProfitFactor,
			stats.TotalCommission,
		)
	}
	w.Flush()

	fmt.Println("\n## Exit Analysis")
	for _, file := range files {
		if trades, ok := byFile[file]; ok {
			analyzeExits(file, trades)
		}
	}
}

// findBacktestFiles lists prefix*.csv files in dir, sorted by name.
func findBacktestFiles(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) && strings.HasSuffix(entry.Name(), ".csv") {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// analyzeExits breaks realized P&L down by close reason and ticker.
func analyzeExits(file string, trades []domain.Trade) {
	counts := make(map[domain.CloseReason]int)
	pnl := make(map[domain.CloseReason]float64)
	byTicker := make(map[string]float64)
	for _, t := range trades {
		if t.Action != domain.ActionSell {
			continue
		}
		p := t.RealizedPnL.InexactFloat64()
		counts[t.CloseReason]++
		pnl[t.CloseReason] += p
		byTicker[t.Ticker] += p
	}

	fmt.Printf("\nFile: %s\n", filepath.Base(file))
	if len(counts) == 0 {
		fmt.Println("No closed positions")
		return
	}
	fmt.Println("Close Reason\tCount\tTotal PnL\tAvg PnL")
	reasons := make([]domain.CloseReason, 0, len(counts))
	for r := range counts {
		reasons = append(reasons, r)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	for _, r := range reasons {
		fmt.Printf("%s\t%d\t%.2f\t%.2f\n", r, counts[r], pnl[r], pnl[r]/float64(counts[r]))
	}

	tickers := make([]string, 0, len(byTicker))
	for t := range byTicker {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	fmt.Println("Ticker\tRealized PnL")
	for _, t := range tickers {
		fmt.Printf("%s\t%.2f\n", t, byTicker[t])
	}
}
