package protocol

import (
	"fmt"
	"strings"
)

// Control signals broadcast between pipeline stages
const (
	ControlFilterReady = "FILTER_READY"
)

// ControlRecord is a pipeline control signal. FILTER_READY tells join mappers
// that the merged Bloom filter has been persisted at Path and stage 2 may
// start testing stock records.
type ControlRecord struct {
	Signal string
	Path   string
}

const ControlRecordParts = 2

// Serialize returns the string representation of the control record
func (c *ControlRecord) Serialize() string {
	return fmt.Sprintf("%s|%s", c.Signal, c.Path)
}

// GetType returns the dataset type for control records
func (c *ControlRecord) GetType() DatasetType {
	return DatasetTypeControl
}

// NewControlRecordFromString creates a ControlRecord from its wire form
func NewControlRecordFromString(data string) (*ControlRecord, error) {
	parts := strings.Split(data, "|")
	return NewControlRecordFromParts(parts)
}

// NewControlRecordFromParts creates a ControlRecord from string parts
func NewControlRecordFromParts(parts []string) (*ControlRecord, error) {
	if len(parts) < ControlRecordParts {
		return nil, fmt.Errorf("invalid ControlRecord format: expected %d fields, got %d",
			ControlRecordParts, len(parts))
	}

	if parts[0] != ControlFilterReady {
		return nil, fmt.Errorf("invalid ControlRecord signal %q", parts[0])
	}

	return &ControlRecord{
		Signal: parts[0],
		Path:   parts[1],
	}, nil
}
