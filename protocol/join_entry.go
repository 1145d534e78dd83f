package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// EntryType tags a join entry with the side it came from. The numeric values
// matter: DIVIDEND sorts before STOCK within a reconciliation group.
type EntryType int

const (
	EntryTypeDividend EntryType = iota
	EntryTypeStock
)

// String returns string representation of EntryType
func (et EntryType) String() string {
	switch et {
	case EntryTypeDividend:
		return "DIVIDEND"
	case EntryTypeStock:
		return "STOCK"
	default:
		return "UNKNOWN"
	}
}

// JoinEntryRecord is a keyed value headed for the reconciler: the dividend
// amount (DIVIDEND side, authoritative) or the close price (STOCK side,
// filter-approved candidate) for a (symbol, date) key.
type JoinEntryRecord struct {
	EntryType EntryType
	Symbol    string
	Date      string
	Value     float64
}

const JoinEntryRecordParts = 4

// Serialize returns the string representation of the join entry record
func (e *JoinEntryRecord) Serialize() string {
	return fmt.Sprintf("%d|%s|%s|%s",
		e.EntryType, e.Symbol, e.Date, strconv.FormatFloat(e.Value, 'f', -1, 64))
}

// GetType returns the dataset type for join entry records
func (e *JoinEntryRecord) GetType() DatasetType {
	return DatasetTypeJoinEntries
}

// NewJoinEntryRecordFromString creates a JoinEntryRecord from its wire form
func NewJoinEntryRecordFromString(data string) (*JoinEntryRecord, error) {
	parts := strings.Split(data, "|")
	return NewJoinEntryRecordFromParts(parts)
}

// NewJoinEntryRecordFromParts creates a JoinEntryRecord from string parts
func NewJoinEntryRecordFromParts(parts []string) (*JoinEntryRecord, error) {
	if len(parts) < JoinEntryRecordParts {
		return nil, fmt.Errorf("invalid JoinEntryRecord format: expected %d fields, got %d",
			JoinEntryRecordParts, len(parts))
	}

	entryType, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid JoinEntryRecord entry type %q: %w", parts[0], err)
	}
	if EntryType(entryType) != EntryTypeDividend && EntryType(entryType) != EntryTypeStock {
		return nil, fmt.Errorf("invalid JoinEntryRecord entry type %d", entryType)
	}

	value, err := strconv.ParseFloat(parts[3], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid JoinEntryRecord value %q: %w", parts[3], err)
	}

	return &JoinEntryRecord{
		EntryType: EntryType(entryType),
		Symbol:    parts[1],
		Date:      parts[2],
		Value:     value,
	}, nil
}
