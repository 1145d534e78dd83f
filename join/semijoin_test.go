package join

import (
	"testing"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/bloom"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Exercises the two stages end to end on in-memory data: build the filter
// from the dividends, prune the stocks through it, reconcile, and check that
// any filter false positive is discarded by the exact match.
func TestSemiJoinEndToEnd(t *testing.T) {
	const symbol = "AAPL"

	dividends := []*protocol.DividendRecord{
		{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-01-02", Dividend: 0.77},
		{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-02-07", Dividend: 0.77},
		{Exchange: "NASDAQ", Symbol: "MSFT", Date: "2020-01-02", Dividend: 0.51}, // wrong symbol, never inserted
	}

	stocks := []*protocol.StockRecord{
		{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-01-02", Close: 75.0875}, // matches a dividend
		{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-01-03", Close: 74.3575}, // no dividend that day
		{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-02-07", Close: 80.0075}, // matches a dividend
		{Exchange: "NASDAQ", Symbol: "MSFT", Date: "2020-01-02", Close: 160.62},  // wrong symbol
	}

	// Stage 1: build per-partition filters from the dividends, then merge
	left := bloom.New(1024, 20)
	right := bloom.New(1024, 20)
	filters := []*bloom.Filter{left, right}
	for i, dividend := range dividends {
		if dividend.Symbol != symbol {
			continue
		}
		filters[i%2].AddString(DeriveKey(dividend.Symbol, dividend.Date))
	}
	merged := bloom.New(1024, 20)
	require.NoError(t, merged.Merge(left))
	require.NoError(t, merged.Merge(right))

	// Stage 2 map side: dividends pass unfiltered, stocks only if the
	// filter admits their key
	acc := NewAccumulator()
	for _, dividend := range dividends {
		if dividend.Symbol != symbol {
			continue
		}
		acc.Add(&protocol.JoinEntryRecord{
			EntryType: protocol.EntryTypeDividend,
			Symbol:    dividend.Symbol,
			Date:      dividend.Date,
			Value:     dividend.Dividend,
		})
	}
	pruned := 0
	for _, stock := range stocks {
		if stock.Symbol != symbol {
			continue
		}
		if !merged.MayContainString(DeriveKey(stock.Symbol, stock.Date)) {
			pruned++
			continue
		}
		acc.Add(&protocol.JoinEntryRecord{
			EntryType: protocol.EntryTypeStock,
			Symbol:    stock.Symbol,
			Date:      stock.Date,
			Value:     stock.Close,
		})
	}

	rows, falsePositives := acc.Finalize()

	// The two genuine matches always come out; the 2020-01-03 stock is
	// either pruned by the filter or discarded as a false positive
	require.Len(t, rows, 2)
	assert.Equal(t, "2020-01-02", rows[0].Date)
	assert.Equal(t, 75.0875, rows[0].Close)
	assert.Equal(t, "2020-02-07", rows[1].Date)
	assert.Equal(t, 80.0075, rows[1].Close)
	assert.Equal(t, 1, pruned+falsePositives)
}
