// Package join holds the semi-join core: the composite key shared by the
// filter and the grouping stage, and the reconciliation logic that discards
// Bloom filter false positives.
package join

import (
	"sort"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
)

// DeriveKey builds the composite membership key inserted into the Bloom
// filter and probed by the stock side. Both stages must derive it the same
// way or the filter guarantees collapse.
func DeriveKey(symbol, date string) string {
	return symbol + "|" + date
}

// Less orders join entries by (symbol, date, entry type). Entry types order
// DIVIDEND before STOCK, so within one (symbol, date) group the authoritative
// dividend entry sorts ahead of every stock candidate. Grouping ignores the
// entry type; it is only the tie-breaker.
func Less(a, b *protocol.JoinEntryRecord) bool {
	if a.Symbol != b.Symbol {
		return a.Symbol < b.Symbol
	}
	if a.Date != b.Date {
		return a.Date < b.Date
	}
	return a.EntryType < b.EntryType
}

// SameGroup reports whether two entries share a (symbol, date) grouping key.
func SameGroup(a, b *protocol.JoinEntryRecord) bool {
	return a.Symbol == b.Symbol && a.Date == b.Date
}

// SortEntries sorts entries into the grouping order the reconciler expects.
func SortEntries(entries []*protocol.JoinEntryRecord) {
	sort.Slice(entries, func(i, j int) bool {
		return Less(entries[i], entries[j])
	})
}
