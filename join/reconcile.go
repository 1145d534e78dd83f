package join

import (
	"sort"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
)

// GroupResult is the outcome of reconciling one (symbol, date) key group.
type GroupResult struct {
	Rows []*protocol.JoinedRecord
	// FalsePositive is set when the group holds stock entries but no dividend
	// confirmed it: every one of those stocks slipped through the Bloom
	// filter. Expected, counted, never an error.
	FalsePositive bool
}

// ReconcileGroup runs the per-group state machine over entries that are
// already in (symbol, date, entry type) order: UNCONFIRMED until a dividend
// entry is seen, then each stock entry emits one output row. It does not
// reorder its input; a dividend arriving after a stock entry means the sort
// contract upstream was broken and the group confirms nothing. With multiple
// dividend entries for one key the first wins.
func ReconcileGroup(entries []*protocol.JoinEntryRecord) GroupResult {
	var result GroupResult

	confirmed := false
	sawStock := false
	for _, entry := range entries {
		switch entry.EntryType {
		case protocol.EntryTypeDividend:
			if !confirmed && !sawStock {
				confirmed = true
			}
		case protocol.EntryTypeStock:
			if confirmed {
				result.Rows = append(result.Rows, &protocol.JoinedRecord{
					Symbol: entry.Symbol,
					Date:   entry.Date,
					Close:  entry.Value,
				})
			} else {
				sawStock = true
			}
		}
	}

	result.FalsePositive = sawStock && !confirmed
	return result
}

// ReconcileSorted splits a fully sorted entry stream into (symbol, date)
// groups and reconciles each one. It returns the confirmed rows and the
// number of false-positive groups.
func ReconcileSorted(entries []*protocol.JoinEntryRecord) ([]*protocol.JoinedRecord, int) {
	var rows []*protocol.JoinedRecord
	falsePositives := 0

	start := 0
	for i := 1; i <= len(entries); i++ {
		if i < len(entries) && SameGroup(entries[start], entries[i]) {
			continue
		}
		result := ReconcileGroup(entries[start:i])
		rows = append(rows, result.Rows...)
		if result.FalsePositive {
			falsePositives++
		}
		start = i
	}

	return rows, falsePositives
}

// Accumulator reconciles entries regardless of arrival order by keeping the
// dividend structurally separate from the stock values per group, instead of
// leaning on the shuffle's sort contract. This is what the reconciler node
// uses: entries from many mappers interleave arbitrarily on the queue.
type Accumulator struct {
	groups map[string]*group
}

type group struct {
	symbol   string
	date     string
	dividend *float64 // first dividend wins; duplicates are ignored
	stocks   []float64
}

// NewAccumulator creates an empty accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		groups: make(map[string]*group),
	}
}

// Add feeds one join entry into its (symbol, date) group.
func (a *Accumulator) Add(entry *protocol.JoinEntryRecord) {
	key := DeriveKey(entry.Symbol, entry.Date)
	g, ok := a.groups[key]
	if !ok {
		g = &group{symbol: entry.Symbol, date: entry.Date}
		a.groups[key] = g
	}

	switch entry.EntryType {
	case protocol.EntryTypeDividend:
		if g.dividend == nil {
			value := entry.Value
			g.dividend = &value
		}
	case protocol.EntryTypeStock:
		g.stocks = append(g.stocks, entry.Value)
	}
}

// Groups returns the number of open key groups.
func (a *Accumulator) Groups() int {
	return len(a.groups)
}

// Finalize emits one row per stock value in every confirmed group, in key
// order, and returns the count of false-positive groups (stock values with no
// dividend). Groups with a dividend but no stock values emit nothing and are
// not false positives.
func (a *Accumulator) Finalize() ([]*protocol.JoinedRecord, int) {
	keys := make([]string, 0, len(a.groups))
	for key := range a.groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var rows []*protocol.JoinedRecord
	falsePositives := 0
	for _, key := range keys {
		g := a.groups[key]
		if g.dividend == nil {
			if len(g.stocks) > 0 {
				falsePositives++
			}
			continue
		}
		for _, closePrice := range g.stocks {
			rows = append(rows, &protocol.JoinedRecord{
				Symbol: g.symbol,
				Date:   g.date,
				Close:  closePrice,
			})
		}
	}

	return rows, falsePositives
}
