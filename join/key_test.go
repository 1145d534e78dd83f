package join

import (
	"testing"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/stretchr/testify/assert"
)

func TestDeriveKey(t *testing.T) {
	assert.Equal(t, "AAPL|2020-01-02", DeriveKey("AAPL", "2020-01-02"))
}

func TestLessOrdersBySymbolThenDateThenType(t *testing.T) {
	dividend := &protocol.JoinEntryRecord{EntryType: protocol.EntryTypeDividend, Symbol: "AAPL", Date: "2020-01-02"}
	stock := &protocol.JoinEntryRecord{EntryType: protocol.EntryTypeStock, Symbol: "AAPL", Date: "2020-01-02"}
	laterDate := &protocol.JoinEntryRecord{EntryType: protocol.EntryTypeDividend, Symbol: "AAPL", Date: "2020-01-03"}
	laterSymbol := &protocol.JoinEntryRecord{EntryType: protocol.EntryTypeDividend, Symbol: "MSFT", Date: "2020-01-01"}

	assert.True(t, Less(dividend, stock), "dividend sorts before stock within a group")
	assert.False(t, Less(stock, dividend))
	assert.True(t, Less(stock, laterDate), "date dominates entry type")
	assert.True(t, Less(laterDate, laterSymbol), "symbol dominates date")
	assert.False(t, Less(dividend, dividend))
}

func TestSortEntriesGroupsKeysWithDividendFirst(t *testing.T) {
	entries := []*protocol.JoinEntryRecord{
		{EntryType: protocol.EntryTypeStock, Symbol: "MSFT", Date: "2020-01-02", Value: 160},
		{EntryType: protocol.EntryTypeStock, Symbol: "AAPL", Date: "2020-01-02", Value: 75},
		{EntryType: protocol.EntryTypeDividend, Symbol: "AAPL", Date: "2020-01-02", Value: 0.77},
		{EntryType: protocol.EntryTypeDividend, Symbol: "MSFT", Date: "2020-01-02", Value: 0.51},
	}

	SortEntries(entries)

	assert.Equal(t, "AAPL", entries[0].Symbol)
	assert.Equal(t, protocol.EntryTypeDividend, entries[0].EntryType)
	assert.Equal(t, protocol.EntryTypeStock, entries[1].EntryType)
	assert.Equal(t, "MSFT", entries[2].Symbol)
	assert.Equal(t, protocol.EntryTypeDividend, entries[2].EntryType)
	assert.Equal(t, protocol.EntryTypeStock, entries[3].EntryType)
}

func TestSameGroupIgnoresEntryType(t *testing.T) {
	dividend := &protocol.JoinEntryRecord{EntryType: protocol.EntryTypeDividend, Symbol: "AAPL", Date: "2020-01-02"}
	stock := &protocol.JoinEntryRecord{EntryType: protocol.EntryTypeStock, Symbol: "AAPL", Date: "2020-01-02"}
	other := &protocol.JoinEntryRecord{EntryType: protocol.EntryTypeStock, Symbol: "AAPL", Date: "2020-01-03"}

	assert.True(t, SameGroup(dividend, stock))
	assert.False(t, SameGroup(dividend, other))
}
