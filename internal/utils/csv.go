package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"hedgeFundSim/internal/domain"
)

var barHeader = []string{"date", "ticker", "open", "high", "low", "close", "volume"}

var tradeHeader = []string{
	"id", "fund_id", "ticker", "action", "quantity", "price", "commission",
	"realized_pnl", "return_pct", "executed_at", "confidence", "close_reason", "rationale",
}

// ReadBarsFromCSV loads daily bars from a CSV file with a header row. Columns are matched by
// name, case-insensitively; "adj_close" is ignored. Files without a ticker column take
// defaultTicker. Bars are returned sorted by ticker then date.
func ReadBarsFromCSV(filename, defaultTicker string) ([]domain.PriceBar, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	bars, err := ReadBars(file, defaultTicker)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return bars, nil
}

// ReadBars parses bar CSV from r. See ReadBarsFromCSV.
func ReadBars(r io.Reader, defaultTicker string) ([]domain.PriceBar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}
	tickerCol, hasTicker := col["ticker"]
	if !hasTicker && defaultTicker == "" {
		return nil, errors.New("no ticker column and no default ticker")
	}

	var bars []domain.PriceBar
	for line := 2; ; line++ {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		bar := domain.PriceBar{Ticker: defaultTicker}
		if hasTicker && rec[tickerCol] != "" {
			bar.Ticker = strings.ToUpper(rec[tickerCol])
		}
		if bar.Date, err = parseDate(rec[col["date"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for _, f := range []struct {
			name string
			dst  *float64
		}{{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close}} {
			if *f.dst, err = strconv.ParseFloat(rec[col[f.name]], 64); err != nil {
				return nil, fmt.Errorf("line %d: invalid %s %q", line, f.name, rec[col[f.name]])
			}
		}
		vol, err := strconv.ParseFloat(rec[col["volume"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid volume %q", line, rec[col["volume"]])
		}
		bar.Volume = int64(vol)
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		if bars[i].Ticker != bars[j].Ticker {
			return bars[i].Ticker < bars[j].Ticker
		}
		return bars[i].Date.Before(bars[j].Date)
	})
	return bars, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return domain.TruncateDay(t), nil
}

// WriteBarsToCSV writes bars with the header date,ticker,open,high,low,close,volume.
func WriteBarsToCSV(bars []domain.PriceBar, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, b := range bars {
		if err := writer.Write([]string{
			b.Date.UTC().Format(time.DateOnly),
			b.Ticker,
			strconv.FormatFloat(b.Open, 'f', -1, 64),
			strconv.FormatFloat(b.High, 'f', -1, 64),
			strconv.FormatFloat(b.Low, 'f', -1, 64),
			strconv.FormatFloat(b.Close, 'f', -1, 64),
			strconv.FormatInt(b.Volume, 10),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteTradesToCSV writes trades, one row each, in the order given.
func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(tradeHeader); err != nil {
		return err
	}
	for _, t := range trades {
		if err := writer.Write([]string{
			t.ID,
			t.FundID,
			t.Ticker,
			string(t.Action),
			strconv.FormatInt(t.Quantity, 10),
			t.Price.String(),
			t.Commission.String(),
			t.RealizedPnL.String(),
			strconv.FormatFloat(t.ReturnPct, 'f', -1, 64),
			t.ExecutedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(t.Confidence, 'f', -1, 64),
			string(t.CloseReason),
			t.Rationale,
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadTradesFromCSV reads a file written by WriteTradesToCSV.
func ReadTradesFromCSV(filename string) ([]*domain.Trade, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(tradeHeader)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	if len(records) == 0 || !strings.EqualFold(records[0][0], tradeHeader[0]) {
		return nil, fmt.Errorf("%s: missing trade header", filename)
	}

	trades := make([]*domain.Trade, 0, len(records)-1)
	for i, rec := range records[1:] {
		t, err := parseTrade(rec)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filename, i+2, err)
		}
		trades = append(trades, t)
	}
	return trades, nil
}

func parseTrade(rec []string) (*domain.Trade, error) {
	t := &domain.Trade{
		ID:          rec[0],
		FundID:      rec[1],
		Ticker:      rec[2],
		Action:      domain.ParseAction(rec[3]),
		CloseReason: domain.CloseReason(rec[11]),
		Rationale:   rec[12],
	}
	var err error
	if t.Quantity, err = strconv.ParseInt(rec[4], 10, 64); err != nil {
		return nil, fmt.Errorf("invalid quantity %q", rec[4])
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{{"price", rec[5], &t.Price}, {"commission", rec[6], &t.Commission}, {"realized_pnl", rec[7], &t.RealizedPnL}} {
		if *f.dst, err = decimal.NewFromString(f.raw); err != nil {
			return nil, fmt.Errorf("invalid %s %q", f.name, f.raw)
		}
	}
	if t.ReturnPct, err = strconv.ParseFloat(rec[8], 64); err != nil {
		return nil, fmt.Errorf("invalid return_pct %q", rec[8])
	}
	if t.ExecutedAt, err = time.Parse(time.RFC3339, rec[9]); err != nil {
		return nil, fmt.Errorf("invalid executed_at %q", rec[9])
	}
	if t.Confidence, err = strconv.ParseFloat(rec[10], 64); err != nil {
		return nil, fmt.Errorf("invalid confidence %q", rec[10])
	}
	return t, nil
}
