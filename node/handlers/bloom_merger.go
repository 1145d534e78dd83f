package handlers

import (
	"log"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/bloom"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/middleware"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/storage"
	"github.com/rabbitmq/amqp091-go"
)

// BloomMergerHandler is the reduce side of stage 1 and the pipeline's single
// serialization point. It ORs together the per-builder filters (valid because
// every builder uses the same geometry and hash family, and the merge is
// associative and commutative), waits for the full builder barrier, persists
// the merged filter, and only then broadcasts FILTER_READY. If the persist
// fails nothing is broadcast and stage 2 never starts.
type BloomMergerHandler struct {
	expectedBuilders int
	store            *storage.FilterStore

	mu     sync.Mutex
	states map[string]*mergeState // keyed by run (client) id

	pub   *middleware.Publisher
	pubMu sync.Mutex
}

type mergeState struct {
	merged      *bloom.Filter
	builderEOFs int
}

// NewBloomMergerHandler creates the merger for the configured builder count
// and filter path.
func NewBloomMergerHandler(cfg *common.JoinConfig) *BloomMergerHandler {
	return &BloomMergerHandler{
		expectedBuilders: cfg.ExpectedBuilders,
		store:            storage.NewFilterStore(cfg.FilterPath),
		states:           make(map[string]*mergeState),
	}
}

// Name returns the handler name
func (h *BloomMergerHandler) Name() string {
	return "bloom_merger"
}

// Workers returns 1: the merge is the stage barrier and must serialize.
func (h *BloomMergerHandler) Workers() int {
	return 1
}

// Shutdown for the merger (the filter is persisted at the barrier)
func (h *BloomMergerHandler) Shutdown() error {
	return nil
}

// StartHandler starts consuming per-builder filters
func (h *BloomMergerHandler) StartHandler(queueManager *middleware.QueueManager, clientWG *sync.WaitGroup) error {
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
		log.Printf("action: merger_consume | result: fail | error: %v", err)
		return err
	}
	return nil
}

// Handle folds one builder's filter into the merged one and completes the
// stage once all builders have reported.
func (h *BloomMergerHandler) Handle(batchMessage *protocol.BatchMessage, clientWG *sync.WaitGroup, msg amqp091.Delivery) error {
	clientWG.Add(1)
	defer clientWG.Done()

	if batchMessage.DatasetType != protocol.DatasetTypeBloomFilter {
		log.Printf("action: merger_handle | result: fail | error: unsupported dataset type: %s",
			batchMessage.DatasetType)
		msg.Ack(false)
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.states[batchMessage.ClientID]
	if !ok {
		state = &mergeState{}
		h.states[batchMessage.ClientID] = state
	}

	for _, record := range batchMessage.Records {
		filterRecord, ok := record.(*protocol.FilterRecord)
		if !ok {
			continue
		}

		var filter bloom.Filter
		if err := filter.UnmarshalBinary(filterRecord.Payload); err != nil {
			log.Printf("action: merger_decode_filter | builder: %s | result: fail | error: %v",
				filterRecord.BuilderID, err)
			msg.Nack(false, true)
			return err
		}

		if state.merged == nil {
			state.merged = &filter
		} else if err := state.merged.Merge(&filter); err != nil {
			log.Printf("action: merger_merge_filter | builder: %s | result: fail | error: %v",
				filterRecord.BuilderID, err)
			msg.Nack(false, true)
			return err
		}
	}

	if batchMessage.EOF {
		state.builderEOFs++
		log.Printf("action: merger_builder_eof | client_id: %s | builders_done: %d | expected: %d",
			batchMessage.ClientID, state.builderEOFs, h.expectedBuilders)
	}

	if state.builderEOFs >= h.expectedBuilders {
		if err := h.finishStage(batchMessage.ClientID, batchMessage.BatchIndex, state); err != nil {
			msg.Nack(false, true)
			return err
		}
		delete(h.states, batchMessage.ClientID)
	}

	msg.Ack(false)
	return nil
}

// finishStage persists the merged filter and broadcasts FILTER_READY
func (h *BloomMergerHandler) finishStage(clientID string, batchIndex int, state *mergeState) error {
	if state.merged == nil {
		// All builders reported empty partitions; persist an empty filter so
		// stage 2 still runs (and prunes every stock record)
		log.Printf("action: merger_finish | client_id: %s | msg: no filter data received", clientID)
		state.merged = bloom.New(64, 1)
	}

	if err := h.store.Save(state.merged); err != nil {
		log.Printf("action: merger_persist_filter | client_id: %s | result: fail | error: %v",
			clientID, err)
		return err
	}

	control := &protocol.ControlRecord{Signal: protocol.ControlFilterReady, Path: h.store.Path()}
	batch := protocol.NewBatchMessage(protocol.DatasetTypeControl, clientID, batchIndex,
		[]protocol.Record{control}, true)

	h.pubMu.Lock()
	err := h.pub.SendToDatasetOutputExchanges(batch)
	h.pubMu.Unlock()
	if err != nil {
		log.Printf("action: merger_broadcast_ready | client_id: %s | result: fail | error: %v",
			clientID, err)
		return err
	}

	log.Printf("action: merger_broadcast_ready | client_id: %s | result: success | path: %s",
		clientID, h.store.Path())

	return nil
}
