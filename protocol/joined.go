package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// JoinedRecord is a confirmed output row: a stock close price whose
// (symbol, date) key had a genuine matching dividend.
type JoinedRecord struct {
	Symbol string
	Date   string
	Close  float64
}

const JoinedRecordParts = 3

// Serialize returns the string representation of the joined record
func (j *JoinedRecord) Serialize() string {
	return fmt.Sprintf("%s|%s|%s",
		j.Symbol, j.Date, strconv.FormatFloat(j.Close, 'f', -1, 64))
}

// GetType returns the dataset type for joined records
func (j *JoinedRecord) GetType() DatasetType {
	return DatasetTypeJoined
}

// OutputLine renders the record the way it is written to the output file:
// the composite key and the close price, tab separated.
func (j *JoinedRecord) OutputLine() string {
	return fmt.Sprintf("%s|%s\t%s", j.Symbol, j.Date, strconv.FormatFloat(j.Close, 'f', -1, 64))
}

// NewJoinedRecordFromString creates a JoinedRecord from its wire form
func NewJoinedRecordFromString(data string) (*JoinedRecord, error) {
	parts := strings.Split(data, "|")
	return NewJoinedRecordFromParts(parts)
}

// NewJoinedRecordFromParts creates a JoinedRecord from string parts
func NewJoinedRecordFromParts(parts []string) (*JoinedRecord, error) {
	if len(parts) < JoinedRecordParts {
		return nil, fmt.Errorf("invalid JoinedRecord format: expected %d fields, got %d",
			JoinedRecordParts, len(parts))
	}

	closePrice, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JoinedRecord close %q: %w", parts[2], err)
	}

	return &JoinedRecord{
		Symbol: parts[0],
		Date:   parts[1],
		Close:  closePrice,
	}, nil
}
