package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"tradejournal/internal/domain"
)

// ImportColumns are the header names understood by ReadImportRows. The last two are optional.
var ImportColumns = []string{"symbol", "side", "quantity", "entry_price", "exit_price", "entry_time", "exit_time", "net_pnl", "market", "swap"}

var requiredColumns = ImportColumns[:8]

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
}

// ErrMissingColumn is returned when the header lacks a required column.
var ErrMissingColumn = errors.New("missing required column")

// ReadImportRows parses a header-mapped broker export. Timestamps without an offset are read in loc.
// Rows that cannot be parsed are returned as failures; only header or read errors abort.
func ReadImportRows(r io.Reader, loc *time.Location) ([]domain.ImportRow, []domain.ImportFailure, error) {
	if loc == nil {
		loc = time.UTC
	}
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[normalizeHeader(h)] = i
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrMissingColumn, c)
		}
	}

	rows := make([]domain.ImportRow, 0)
	failures := make([]domain.ImportFailure, 0)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				failures = append(failures, domain.ImportFailure{Line: parseErr.StartLine, Reason: err.Error()})
				continue
			}
			return nil, nil, fmt.Errorf("failed to read import rows: %w", err)
		}
		line, _ := reader.FieldPos(0)
		if blank(record) {
			continue
		}
		row, err := parseRow(record, index, loc)
		if err != nil {
			failures = append(failures, domain.ImportFailure{Line: line, Reason: err.Error()})
			continue
		}
		row.Line = line
		rows = append(rows, row)
	}
	return rows, failures, nil
}

func parseRow(record []string, index map[string]int, loc *time.Location) (domain.ImportRow, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var row domain.ImportRow
	var err error
	row.Symbol = strings.ToUpper(field("symbol"))
	if row.Side, err = parseSide(field("side")); err != nil {
		return row, err
	}
	if row.Quantity, err = parseAmount("quantity", field("quantity")); err != nil {
		return row, err
	}
	if row.EntryPrice, err = parseAmount("entry_price", field("entry_price")); err != nil {
		return row, err
	}
	if v := field("exit_price"); v != "" {
		exit, err := parseAmount("exit_price", v)
		if err != nil {
			return row, err
		}
		row.ExitPrice = &exit
	}
	if row.EntryTime, err = parseTime("entry_time", field("entry_time"), loc); err != nil {
		return row, err
	}
	if v := field("exit_time"); v != "" {
		exit, err := parseTime("exit_time", v, loc)
		if err != nil {
			return row, err
		}
		row.ExitTime = &exit
	}
	if row.NetPnL, err = parseAmount("net_pnl", field("net_pnl")); err != nil {
		return row, err
	}
	row.Market = domain.Market(strings.ToUpper(field("market")))
	if v := field("swap"); v != "" {
		if row.Swap, err = parseAmount("swap", v); err != nil {
			return row, err
		}
	}
	return row, nil
}

func parseSide(v string) (domain.Side, error) {
	switch strings.ToUpper(v) {
	case "LONG", "BUY", "B":
		return domain.Long, nil
	case "SHORT", "SELL", "S":
		return domain.Short, nil
	}
	return "", fmt.Errorf("side: unrecognized value %q", v)
}

// parseAmount accepts broker money formats: "$1,234.50", "-12", "(51.44)".
func parseAmount(name, v string) (float64, error) {
	s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(v)
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	if negative {
		s = s[1 : len(s)-1]
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", name, v)
	}
	if negative {
		f = -f
	}
	return f, nil
}

func parseTime(name, v string, loc *time.Location) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%s: unrecognized timestamp %q", name, v)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

// WriteTradesToCSV exports trades with their reconciled figures.
func WriteTradesToCSV(w io.Writer, trades []*domain.Trade) error {
	writer := csv.NewWriter(w)

	// Write header
	if err := writer.Write([]string{"id", "symbol", "side", "quantity", "entry_price", "exit_price", "entry_time", "exit_time",
		"market", "status", "gross_pnl", "net_pnl", "commission", "entry_fees", "exit_fees", "swap", "data_source"}); err != nil {
		return err
	}

	for _, t := range trades {
		exitPrice, exitTime, gross, net := "", "", "", ""
		if t.ExitPrice != nil {
			exitPrice = formatFloat(*t.ExitPrice)
		}
		if t.ExitTime != nil {
			exitTime = t.ExitTime.Format(time.RFC3339)
		}
		if t.GrossPnL != nil {
			gross = formatFloat(*t.GrossPnL)
		}
		if t.NetPnL != nil {
			net = formatFloat(*t.NetPnL)
		}
		if err := writer.Write([]string{
			t.ID,
			t.Symbol,
			string(t.Side),
			formatFloat(t.Quantity),
			formatFloat(t.EntryPrice),
			exitPrice,
			t.EntryTime.Format(time.RFC3339),
			exitTime,
			string(t.Market),
			string(t.Status),
			gross,
			net,
			formatFloat(t.Commission),
			formatFloat(t.EntryFees),
			formatFloat(t.ExitFees),
			formatFloat(t.Swap),
			string(t.DataSource),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
