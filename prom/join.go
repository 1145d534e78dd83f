package prom

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BloomKeysInserted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semijoin_bloom_keys_inserted_total",
		Help: "The total number of dividend keys inserted into the Bloom filter",
	})
	FilterLookups = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semijoin_filter_lookups_total",
		Help: "The total number of stock records tested against the Bloom filter",
	})
	StockRecordsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semijoin_stock_records_pruned_total",
		Help: "The total number of stock records dropped on a negative membership test",
	})
	FalsePositives = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semijoin_false_positives_total",
		Help: "The total number of key groups that passed the Bloom filter without a matching dividend",
	})
	RowsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "semijoin_rows_joined_total",
		Help: "The total number of confirmed (symbol|date, close) rows emitted",
	})
)
