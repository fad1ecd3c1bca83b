package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/evdnx/backcast/logger"
)

// requiredColumns are matched case-insensitively against the header row;
// "volume" is optional.
var requiredColumns = []string{"date", "open", "high", "low", "close"}

// LoadCSV reads an OHLCV table from a flat CSV file (spec.md §6: "Input
// data ... built from CSV"). The header row names its columns in any
// order; the date column may be an RFC3339 timestamp or a bare
// YYYY-MM-DD date.
func LoadCSV(path string, log logger.Logger) (*Series, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return ParseCSV(f, log)
}

// ParseCSV reads an OHLCV table from r, the same shape LoadCSV expects.
func ParseCSV(r io.Reader, log logger.Logger) (*Series, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, fmt.Errorf("csv missing required column %q", name)
		}
	}
	volCol, hasVolume := col["volume"]

	var idx []int64
	var open, high, low, closeV, volume []float64

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		t, err := parseDate(record[col["date"]])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", len(idx)+1, err)
		}
		o, err := strconv.ParseFloat(record[col["open"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: open: %w", len(idx)+1, err)
		}
		h, err := strconv.ParseFloat(record[col["high"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: high: %w", len(idx)+1, err)
		}
		l, err := strconv.ParseFloat(record[col["low"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: low: %w", len(idx)+1, err)
		}
		c, err := strconv.ParseFloat(record[col["close"]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: close: %w", len(idx)+1, err)
		}

		v := math.NaN()
		if hasVolume {
			if parsed, err := strconv.ParseFloat(record[volCol], 64); err == nil {
				v = parsed
			}
		}

		idx = append(idx, t.Unix())
		open = append(open, o)
		high = append(high, h)
		low = append(low, l)
		closeV = append(closeV, c)
		volume = append(volume, v)
	}

	if len(idx) == 0 {
		return nil, fmt.Errorf("csv contained no data rows")
	}
	return NewSeries(idx, true, open, high, low, closeV, volume, log)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", raw)
}
