package protocol

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// FilterRecord carries one builder's serialized Bloom filter to the merger.
// The binary blob is base64 encoded so it survives the pipe-delimited batch
// envelope.
type FilterRecord struct {
	BuilderID string
	Payload   []byte
}

const FilterRecordParts = 2

// Serialize returns the string representation of the filter record
func (f *FilterRecord) Serialize() string {
	return fmt.Sprintf("%s|%s", f.BuilderID, base64.StdEncoding.EncodeToString(f.Payload))
}

// GetType returns the dataset type for filter records
func (f *FilterRecord) GetType() DatasetType {
	return DatasetTypeBloomFilter
}

// NewFilterRecordFromString creates a FilterRecord from its wire form
func NewFilterRecordFromString(data string) (*FilterRecord, error) {
	parts := strings.Split(data, "|")
	return NewFilterRecordFromParts(parts)
}

// NewFilterRecordFromParts creates a FilterRecord from string parts
func NewFilterRecordFromParts(parts []string) (*FilterRecord, error) {
	if len(parts) < FilterRecordParts {
		return nil, fmt.Errorf("invalid FilterRecord format: expected %d fields, got %d",
			FilterRecordParts, len(parts))
	}

	payload, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("invalid FilterRecord payload: %w", err)
	}

	return &FilterRecord{
		BuilderID: parts[0],
		Payload:   payload,
	}, nil
}
