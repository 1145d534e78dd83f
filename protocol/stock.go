package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// StockRecord represents a daily stock price entry: exchange, symbol, date,
// open, high, low, close, volume, adj_close
type StockRecord struct {
	Exchange string
	Symbol   string
	Date     string
	Open     string
	High     string
	Low      string
	Close    float64
	Volume   string
	AdjClose string
}

const StockRecordParts = 9

// Serialize returns the string representation of the stock record
func (s *StockRecord) Serialize() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s|%s",
		s.Exchange, s.Symbol, s.Date, s.Open, s.High, s.Low,
		strconv.FormatFloat(s.Close, 'f', -1, 64), s.Volume, s.AdjClose)
}

// GetType returns the dataset type for stock records
func (s *StockRecord) GetType() DatasetType {
	return DatasetTypeStocks
}

// NewStockRecordFromString creates a StockRecord from its wire form
func NewStockRecordFromString(data string) (*StockRecord, error) {
	parts := strings.Split(data, "|")
	return NewStockRecordFromParts(parts)
}

// NewStockRecordFromParts creates a StockRecord from string parts
func NewStockRecordFromParts(parts []string) (*StockRecord, error) {
	if len(parts) < StockRecordParts {
		return nil, fmt.Errorf("invalid StockRecord format: expected %d fields, got %d",
			StockRecordParts, len(parts))
	}

	closePrice, err := strconv.ParseFloat(parts[6], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid StockRecord close %q: %w", parts[6], err)
	}

	return &StockRecord{
		Exchange: parts[0],
		Symbol:   parts[1],
		Date:     parts[2],
		Open:     parts[3],
		High:     parts[4],
		Low:      parts[5],
		Close:    closePrice,
		Volume:   parts[7],
		AdjClose: parts[8],
	}, nil
}

// ParseStockLine parses a raw backslash-comma-delimited daily price line:
// exchange, symbol, date, open, high, low, close, volume, adj_close.
func ParseStockLine(line string) (*StockRecord, error) {
	fields := SplitRawLine(line)
	if len(fields) < StockRecordParts {
		return nil, fmt.Errorf("malformed stock line (expected %d fields, got %d): %q",
			StockRecordParts, len(fields), line)
	}

	closePrice, err := strconv.ParseFloat(fields[6], 64)
	if err != nil {
		return nil, fmt.Errorf("malformed stock line (bad close price): %q: %w", line, err)
	}

	return &StockRecord{
		Exchange: fields[0],
		Symbol:   fields[1],
		Date:     fields[2],
		Open:     fields[3],
		High:     fields[4],
		Low:      fields[5],
		Close:    closePrice,
		Volume:   fields[7],
		AdjClose: fields[8],
	}, nil
}
