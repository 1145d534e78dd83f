package handlers

import (
	"log"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/bloom"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/join"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/middleware"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/prom"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/rabbitmq/amqp091-go"
)

// BloomBuilderHandler is the map side of stage 1: it scans its partition of
// the dividend stream and inserts the symbol|date key of every record
// matching the target symbol into a run-local Bloom filter. On EOF the filter
// is shipped to the merger.
type BloomBuilderHandler struct {
	builderID  string
	symbol     string
	capacity   uint64
	bitsPerKey uint32

	mu      sync.Mutex
	filters map[string]*builderState // keyed by run (client) id

	// Reusable publisher to avoid channel exhaustion
	pub   *middleware.Publisher
	pubMu sync.Mutex
}

type builderState struct {
	filter   *bloom.Filter
	inserted int
}

// NewBloomBuilderHandler creates a builder for the configured target symbol
// and filter geometry.
func NewBloomBuilderHandler(builderID string, cfg *common.JoinConfig) *BloomBuilderHandler {
	return &BloomBuilderHandler{
		builderID:  builderID,
		symbol:     cfg.StockSymbol,
		capacity:   cfg.BloomCapacity,
		bitsPerKey: cfg.BloomBitsPerKey,
		filters:    make(map[string]*builderState),
	}
}

// Name returns the handler name
func (h *BloomBuilderHandler) Name() string {
	return "bloom_builder_" + h.symbol
}

// Workers returns the worker count: the scan is embarrassingly parallel, the
// filter insert is mutex-protected.
func (h *BloomBuilderHandler) Workers() int {
	return 4
}

// Shutdown for builders (filters are shipped on EOF, nothing to persist)
func (h *BloomBuilderHandler) Shutdown() error {
	return nil
}

// StartHandler starts consuming dividend batches
func (h *BloomBuilderHandler) StartHandler(queueManager *middleware.QueueManager, clientWG *sync.WaitGroup) error {
	pub, err := middleware.NewPublisher(queueManager.Connection, queueManager.Wiring)
	if err != nil {
		log.Printf("action: create_publisher | result: fail | error: %v", err)
		return err
	}
	h.pub = pub

	err = queueManager.StartConsuming(func(batchMessage *protocol.BatchMessage, delivery amqp091.Delivery) {
		h.Handle(batchMessage, clientWG, delivery)
	}, h.Workers())
	if err != nil {
		log.Printf("action: builder_consume | result: fail | error: %v", err)
		return err
	}
	return nil
}

// Handle accumulates one dividend batch into the run's filter and ships the
// filter to the merger once the partition's EOF arrives.
func (h *BloomBuilderHandler) Handle(batchMessage *protocol.BatchMessage, clientWG *sync.WaitGroup, msg amqp091.Delivery) error {
	clientWG.Add(1)
	defer clientWG.Done()

	if batchMessage.DatasetType != protocol.DatasetTypeDividends {
		log.Printf("action: builder_handle | result: fail | error: unsupported dataset type: %s",
			batchMessage.DatasetType)
		msg.Ack(false)
		return nil
	}

	h.mu.Lock()
	state, ok := h.filters[batchMessage.ClientID]
	if !ok {
		state = &builderState{filter: bloom.NewWithEstimates(h.capacity, h.bitsPerKey)}
		h.filters[batchMessage.ClientID] = state
	}

	for _, record := range batchMessage.Records {
		dividend, ok := record.(*protocol.DividendRecord)
		if !ok {
			continue
		}
		if dividend.Symbol != h.symbol {
			continue
		}
		state.filter.AddString(join.DeriveKey(dividend.Symbol, dividend.Date))
		state.inserted++
		prom.BloomKeysInserted.Inc()
	}
	h.mu.Unlock()

	if batchMessage.EOF {
		if err := h.shipFilter(batchMessage.ClientID, batchMessage.BatchIndex); err != nil {
			msg.Nack(false, true)
			return err
		}
	}

	msg.Ack(false)
	return nil
}

// shipFilter serializes the run's filter and publishes it to the merge queue
func (h *BloomBuilderHandler) shipFilter(clientID string, batchIndex int) error {
	h.mu.Lock()
	state := h.filters[clientID]
	delete(h.filters, clientID)
	h.mu.Unlock()

	if state == nil {
		// EOF for a run with no data batches: ship an empty filter so the
		// merger's builder count still adds up
		state = &builderState{filter: bloom.NewWithEstimates(h.capacity, h.bitsPerKey)}
	}

	blob, err := state.filter.MarshalBinary()
	if err != nil {
		log.Printf("action: builder_marshal_filter | result: fail | error: %v", err)
		return err
	}

	batch := protocol.NewBatchMessage(protocol.DatasetTypeBloomFilter, clientID, batchIndex,
		[]protocol.Record{&protocol.FilterRecord{BuilderID: h.builderID, Payload: blob}}, true)

	h.pubMu.Lock()
	err = h.pub.SendToDatasetOutputExchanges(batch)
	h.pubMu.Unlock()
	if err != nil {
		log.Printf("action: builder_publish_filter | result: fail | error: %v", err)
		return err
	}

	log.Printf("action: builder_publish_filter | result: success | builder: %s | client_id: %s | keys_inserted: %d",
		h.builderID, clientID, state.inserted)

	return nil
}
