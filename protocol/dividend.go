package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// DividendRecord represents a dividend entry: exchange, symbol, date, dividend
type DividendRecord struct {
	Exchange string
	Symbol   string
	Date     string
	Dividend float64
}

const DividendRecordParts = 4

// Serialize returns the string representation of the dividend record
func (d *DividendRecord) Serialize() string {
	return fmt.Sprintf("%s|%s|%s|%s",
		d.Exchange, d.Symbol, d.Date, strconv.FormatFloat(d.Dividend, 'f', -1, 64))
}

// GetType returns the dataset type for dividend records
func (d *DividendRecord) GetType() DatasetType {
	return DatasetTypeDividends
}

// NewDividendRecordFromString creates a DividendRecord from its wire form
func NewDividendRecordFromString(data string) (*DividendRecord, error) {
	parts := strings.Split(data, "|")
	return NewDividendRecordFromParts(parts)
}

// NewDividendRecordFromParts creates a DividendRecord from string parts
func NewDividendRecordFromParts(parts []string) (*DividendRecord, error) {
	if len(parts) < DividendRecordParts {
		return nil, fmt.Errorf("invalid DividendRecord format: expected %d fields, got %d",
			DividendRecordParts, len(parts))
	}

	dividend, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid DividendRecord dividend %q: %w", parts[3], err)
	}

	return &DividendRecord{
		Exchange: parts[0],
		Symbol:   parts[1],
		Date:     parts[2],
		Dividend: dividend,
	}, nil
}

// ParseDividendLine parses a raw backslash-comma-delimited dividend line:
// exchange, symbol, date, dividend. The error carries the offending line so
// callers can fail fast instead of indexing past a short split.
func ParseDividendLine(line string) (*DividendRecord, error) {
	fields := SplitRawLine(line)
	if len(fields) < DividendRecordParts {
		return nil, fmt.Errorf("malformed dividend line (expected %d fields, got %d): %q",
			DividendRecordParts, len(fields), line)
	}

	dividend, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return nil, fmt.Errorf("malformed dividend line (bad amount): %q: %w", line, err)
	}

	return &DividendRecord{
		Exchange: fields[0],
		Symbol:   fields[1],
		Date:     fields[2],
		Dividend: dividend,
	}, nil
}
