package handlers

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/bloom"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests below drive Handle directly with a zero Delivery: ack/nack are no-ops
// without a broker, which is fine for the accumulation paths under test.

func testJoinConfig(t *testing.T) *common.JoinConfig {
	t.Helper()
	dir := t.TempDir()
	return &common.JoinConfig{
		StockSymbol:      "AAPL",
		FilterPath:       filepath.Join(dir, "dividendfilter"),
		OutputPath:       filepath.Join(dir, "joined.txt"),
		BloomCapacity:    1000,
		BloomBitsPerKey:  20,
		ExpectedBuilders: 2,
		ExpectedMappers:  2,
		BatchSize:        500,
	}
}

func TestBloomBuilderAccumulatesMatchingKeys(t *testing.T) {
	handler := NewBloomBuilderHandler("0", testJoinConfig(t))
	var wg sync.WaitGroup

	batch := protocol.NewBatchMessage(protocol.DatasetTypeDividends, "run-1", 0, []protocol.Record{
		&protocol.DividendRecord{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-01-02", Dividend: 0.77},
		&protocol.DividendRecord{Exchange: "NASDAQ", Symbol: "MSFT", Date: "2020-01-02", Dividend: 0.51},
		&protocol.DividendRecord{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-02-07", Dividend: 0.77},
	}, false)

	require.NoError(t, handler.Handle(batch, &wg, amqp091.Delivery{}))

	state := handler.filters["run-1"]
	require.NotNil(t, state)
	assert.Equal(t, 2, state.inserted, "only target-symbol records are inserted")
	assert.True(t, state.filter.MayContainString("AAPL|2020-01-02"))
	assert.True(t, state.filter.MayContainString("AAPL|2020-02-07"))
}

func TestBloomBuilderKeepsRunsSeparate(t *testing.T) {
	handler := NewBloomBuilderHandler("0", testJoinConfig(t))
	var wg sync.WaitGroup

	for _, clientID := range []string{"run-1", "run-2"} {
		batch := protocol.NewBatchMessage(protocol.DatasetTypeDividends, clientID, 0, []protocol.Record{
			&protocol.DividendRecord{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-01-02", Dividend: 0.77},
		}, false)
		require.NoError(t, handler.Handle(batch, &wg, amqp091.Delivery{}))
	}

	assert.Len(t, handler.filters, 2)
	assert.Equal(t, 1, handler.filters["run-1"].inserted)
	assert.Equal(t, 1, handler.filters["run-2"].inserted)
}

func TestBloomBuilderIgnoresWrongDataset(t *testing.T) {
	handler := NewBloomBuilderHandler("0", testJoinConfig(t))
	var wg sync.WaitGroup

	batch := protocol.NewBatchMessage(protocol.DatasetTypeStocks, "run-1", 0, nil, false)
	require.NoError(t, handler.Handle(batch, &wg, amqp091.Delivery{}))

	assert.Empty(t, handler.filters)
}

func filterBatch(t *testing.T, clientID, builderID string, keys ...string) *protocol.BatchMessage {
	t.Helper()
	filter := bloom.New(1024, 20)
	for _, key := range keys {
		filter.AddString(key)
	}
	blob, err := filter.MarshalBinary()
	require.NoError(t, err)
	return protocol.NewBatchMessage(protocol.DatasetTypeBloomFilter, clientID, 0,
		[]protocol.Record{&protocol.FilterRecord{BuilderID: builderID, Payload: blob}}, true)
}

func TestBloomMergerMergesBelowBarrier(t *testing.T) {
	handler := NewBloomMergerHandler(testJoinConfig(t))
	var wg sync.WaitGroup

	// One of two expected builders: merged but not yet finished
	require.NoError(t, handler.Handle(filterBatch(t, "run-1", "0", "AAPL|2020-01-02"), &wg, amqp091.Delivery{}))

	state := handler.states["run-1"]
	require.NotNil(t, state)
	assert.Equal(t, 1, state.builderEOFs)
	require.NotNil(t, state.merged)
	assert.True(t, state.merged.MayContainString("AAPL|2020-01-02"))
}

func TestBloomMergerRejectsCorruptFilter(t *testing.T) {
	handler := NewBloomMergerHandler(testJoinConfig(t))
	var wg sync.WaitGroup

	batch := protocol.NewBatchMessage(protocol.DatasetTypeBloomFilter, "run-1", 0,
		[]protocol.Record{&protocol.FilterRecord{BuilderID: "0", Payload: []byte("garbage")}}, true)

	assert.Error(t, handler.Handle(batch, &wg, amqp091.Delivery{}))
}

func TestBloomMergerRejectsMismatchedGeometry(t *testing.T) {
	handler := NewBloomMergerHandler(testJoinConfig(t))
	var wg sync.WaitGroup

	require.NoError(t, handler.Handle(filterBatch(t, "run-1", "0", "AAPL|2020-01-02"), &wg, amqp091.Delivery{}))

	other := bloom.New(2048, 20)
	blob, err := other.MarshalBinary()
	require.NoError(t, err)
	batch := protocol.NewBatchMessage(protocol.DatasetTypeBloomFilter, "run-1", 0,
		[]protocol.Record{&protocol.FilterRecord{BuilderID: "1", Payload: blob}}, true)

	assert.Error(t, handler.Handle(batch, &wg, amqp091.Delivery{}))
}

func TestJoinMapperBuffersStocksUntilFilterReady(t *testing.T) {
	cfg := testJoinConfig(t)
	handler := NewJoinMapperHandler("0", cfg, func() (*bloom.Filter, error) {
		return bloom.New(1024, 20), nil
	})
	var wg sync.WaitGroup

	batch := protocol.NewBatchMessage(protocol.DatasetTypeStocks, "run-1", 0, []protocol.Record{
		&protocol.StockRecord{Exchange: "NASDAQ", Symbol: "AAPL", Date: "2020-01-02", Close: 75.0875},
	}, false)

	require.NoError(t, handler.Handle(batch, &wg, amqp091.Delivery{}))

	state := handler.states["run-1"]
	require.NotNil(t, state)
	assert.Nil(t, state.filter)
	assert.Len(t, state.buffered, 1)
}

func TestJoinMapperDropsNonMatchingDividends(t *testing.T) {
	cfg := testJoinConfig(t)
	handler := NewJoinMapperHandler("0", cfg, func() (*bloom.Filter, error) {
		return bloom.New(1024, 20), nil
	})
	var wg sync.WaitGroup

	// No matching records means no publish; the EOF flag still registers
	batch := protocol.NewBatchMessage(protocol.DatasetTypeDividends, "run-1", 0, []protocol.Record{
		&protocol.DividendRecord{Exchange: "NASDAQ", Symbol: "MSFT", Date: "2020-01-02", Dividend: 0.51},
	}, true)

	require.NoError(t, handler.Handle(batch, &wg, amqp091.Delivery{}))

	state := handler.states["run-1"]
	require.NotNil(t, state)
	assert.True(t, state.dividendEOF)
	assert.Zero(t, state.outIndex)
}

func TestReconcilerAccumulatesBelowBarrier(t *testing.T) {
	handler := NewReconcilerHandler(testJoinConfig(t))
	var wg sync.WaitGroup

	// First of two expected mappers: entries accumulate, no finalize yet
	batch := protocol.NewBatchMessage(protocol.DatasetTypeJoinEntries, "run-1", 0, []protocol.Record{
		&protocol.JoinEntryRecord{EntryType: protocol.EntryTypeDividend, Symbol: "AAPL", Date: "2020-01-02", Value: 0.77},
		&protocol.JoinEntryRecord{EntryType: protocol.EntryTypeStock, Symbol: "AAPL", Date: "2020-01-02", Value: 75.0875},
	}, true)

	require.NoError(t, handler.Handle(batch, &wg, amqp091.Delivery{}))

	state := handler.states["run-1"]
	require.NotNil(t, state)
	assert.Equal(t, 1, state.mapperEOFs)
	assert.Equal(t, 1, state.acc.Groups())
}
