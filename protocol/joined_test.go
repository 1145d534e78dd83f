package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJoinedRecordOutputLine(t *testing.T) {
	record := &JoinedRecord{Symbol: "AAPL", Date: "2020-01-02", Close: 75.0875}

	assert.Equal(t, "AAPL|2020-01-02\t75.0875", record.OutputLine())
}

func TestJoinedRecordRoundTrip(t *testing.T) {
	record := &JoinedRecord{Symbol: "AAPL", Date: "2020-01-02", Close: 75.0875}

	restored, err := NewJoinedRecordFromString(record.Serialize())
	require.NoError(t, err)
	assert.Equal(t, record, restored)
}

func TestControlRecordRejectsUnknownSignal(t *testing.T) {
	_, err := NewControlRecordFromString("BOGUS|/some/path")
	assert.Error(t, err)
}

func TestJoinEntryRecordRejectsUnknownEntryType(t *testing.T) {
	_, err := NewJoinEntryRecordFromString("7|AAPL|2020-01-02|0.77")
	assert.Error(t, err)
}
