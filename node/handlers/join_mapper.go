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

// JoinMapperHandler is the map side of stage 2. Dividend records for the
// target symbol become DIVIDEND join entries unconditionally (the
// authoritative side). Stock records are probed against the persisted Bloom
// filter and only possible members become STOCK entries; a negative test is
// exact, the record is definitely not joinable. Stock batches that arrive
// before the FILTER_READY broadcast are buffered, never tested against a
// stale or missing filter.
type JoinMapperHandler struct {
	mapperID string
	symbol   string

	loadFilter func() (*bloom.Filter, error)

	pipeline *middleware.Pipeline

	mu     sync.Mutex
	states map[string]*mapperState // keyed by run (client) id

	pub   *middleware.Publisher
	pubMu sync.Mutex
}

type mapperState struct {
	filter      *bloom.Filter
	buffered    []*protocol.BatchMessage // stock batches awaiting the filter
	stockEOF    bool
	dividendEOF bool
	finished    bool
	outIndex    int
}

// NewJoinMapperHandler creates a mapper for the configured symbol. The filter
// loader is called once per run, when FILTER_READY arrives.
func NewJoinMapperHandler(mapperID string, cfg *common.JoinConfig, loadFilter func() (*bloom.Filter, error)) *JoinMapperHandler {
	return &JoinMapperHandler{
		mapperID:   mapperID,
		symbol:     cfg.StockSymbol,
		loadFilter: loadFilter,
		states:     make(map[string]*mapperState),
	}
}

// Name returns the handler name
func (h *JoinMapperHandler) Name() string {
	return "join_mapper_" + h.symbol
}

// Workers is unused for the mapper: it consumes through the pipeline.
func (h *JoinMapperHandler) Workers() int {
	return 1
}

// Shutdown stops the consumer/processor pipeline, draining what it buffered
func (h *JoinMapperHandler) Shutdown() error {
	if h.pipeline != nil {
		h.pipeline.Stop()
	}
	return nil
}

// StartHandler starts the consumer/processor pipeline over the mapper's
// queue: stocks are the bulk dataset of the run, so this role uses the
// prefetching pipeline instead of the plain worker pool.
func (h *JoinMapperHandler) StartHandler(queueManager *middleware.QueueManager, clientWG *sync.WaitGroup) error {
	pub, err := middleware.NewPublisher(queueManager.Connection, queueManager.Wiring)
	if err != nil {
		log.Printf("action: create_publisher | result: fail | error: %v", err)
		return err
	}
	h.pub = pub

	h.pipeline = middleware.NewPipeline(middleware.DefaultPipelineConfig(), queueManager.Connection)
	err = h.pipeline.Start(queueManager.Wiring.QueueName, func(batchMessage *protocol.BatchMessage, delivery amqp091.Delivery) {
		h.Handle(batchMessage, clientWG, delivery)
	})
	if err != nil {
		log.Printf("action: mapper_consume | result: fail | error: %v", err)
		return err
	}

	h.pipeline.Wait()
	return nil
}

// Handle routes a batch by dataset type: control, dividends or stocks.
func (h *JoinMapperHandler) Handle(batchMessage *protocol.BatchMessage, clientWG *sync.WaitGroup, msg amqp091.Delivery) error {
	clientWG.Add(1)
	defer clientWG.Done()

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.states[batchMessage.ClientID]
	if !ok {
		state = &mapperState{}
		h.states[batchMessage.ClientID] = state
	}

	switch batchMessage.DatasetType {
	case protocol.DatasetTypeControl:
		return h.handleControl(state, batchMessage, msg)
	case protocol.DatasetTypeDividends:
		return h.handleDividends(state, batchMessage, msg)
	case protocol.DatasetTypeStocks:
		return h.handleStocks(state, batchMessage, msg)
	default:
		log.Printf("action: mapper_handle | result: fail | error: unsupported dataset type: %s",
			batchMessage.DatasetType)
		msg.Ack(false)
		return nil
	}
}

// handleControl loads the persisted filter and drains the buffered stock
// batches that were waiting for it.
func (h *JoinMapperHandler) handleControl(state *mapperState, batchMessage *protocol.BatchMessage, msg amqp091.Delivery) error {
	if state.filter != nil {
		msg.Ack(false)
		return nil
	}

	filter, err := h.loadFilter()
	if err != nil {
		// Fatal for the stage: without the filter no stock record may pass
		log.Printf("action: mapper_load_filter | client_id: %s | result: fail | error: %v",
			batchMessage.ClientID, err)
		msg.Nack(false, true)
		return err
	}
	state.filter = filter

	buffered := state.buffered
	state.buffered = nil

	log.Printf("action: mapper_filter_ready | mapper: %s | client_id: %s | buffered_batches: %d",
		h.mapperID, batchMessage.ClientID, len(buffered))

	for _, stockBatch := range buffered {
		// Buffered batches were ACK'd when queued; publish failures here
		// surface on the next EOF check rather than a redelivery
		if err := h.emitStockEntries(state, stockBatch); err != nil {
			log.Printf("action: mapper_drain_buffered | client_id: %s | result: fail | error: %v",
				batchMessage.ClientID, err)
			msg.Nack(false, true)
			return err
		}
	}

	if err := h.maybeFinish(state, batchMessage.ClientID); err != nil {
		msg.Nack(false, true)
		return err
	}

	msg.Ack(false)
	return nil
}

// handleDividends emits DIVIDEND entries unconditionally for the target symbol
func (h *JoinMapperHandler) handleDividends(state *mapperState, batchMessage *protocol.BatchMessage, msg amqp091.Delivery) error {
	var entries []protocol.Record
	for _, record := range batchMessage.Records {
		dividend, ok := record.(*protocol.DividendRecord)
		if !ok || dividend.Symbol != h.symbol {
			continue
		}
		entries = append(entries, &protocol.JoinEntryRecord{
			EntryType: protocol.EntryTypeDividend,
			Symbol:    dividend.Symbol,
			Date:      dividend.Date,
			Value:     dividend.Dividend,
		})
	}

	if err := h.publishEntries(state, batchMessage.ClientID, entries); err != nil {
		msg.Nack(false, true)
		return err
	}

	if batchMessage.EOF {
		state.dividendEOF = true
		if err := h.maybeFinish(state, batchMessage.ClientID); err != nil {
			msg.Nack(false, true)
			return err
		}
	}

	msg.Ack(false)
	return nil
}

// handleStocks probes stock records against the filter, buffering the batch
// if the filter is not ready yet.
func (h *JoinMapperHandler) handleStocks(state *mapperState, batchMessage *protocol.BatchMessage, msg amqp091.Delivery) error {
	if state.filter == nil {
		state.buffered = append(state.buffered, batchMessage)
		msg.Ack(false)
		return nil
	}

	if err := h.emitStockEntries(state, batchMessage); err != nil {
		msg.Nack(false, true)
		return err
	}

	if err := h.maybeFinish(state, batchMessage.ClientID); err != nil {
		msg.Nack(false, true)
		return err
	}

	msg.Ack(false)
	return nil
}

// emitStockEntries runs the membership test over one stock batch and
// publishes the surviving entries.
func (h *JoinMapperHandler) emitStockEntries(state *mapperState, batchMessage *protocol.BatchMessage) error {
	var entries []protocol.Record
	for _, record := range batchMessage.Records {
		stock, ok := record.(*protocol.StockRecord)
		if !ok || stock.Symbol != h.symbol {
			continue
		}

		prom.FilterLookups.Inc()
		if !state.filter.MayContainString(join.DeriveKey(stock.Symbol, stock.Date)) {
			prom.StockRecordsPruned.Inc()
			continue
		}

		entries = append(entries, &protocol.JoinEntryRecord{
			EntryType: protocol.EntryTypeStock,
			Symbol:    stock.Symbol,
			Date:      stock.Date,
			Value:     stock.Close,
		})
	}

	if batchMessage.EOF {
		state.stockEOF = true
	}

	return h.publishEntries(state, batchMessage.ClientID, entries)
}

// publishEntries ships join entries to the reconciler
func (h *JoinMapperHandler) publishEntries(state *mapperState, clientID string, entries []protocol.Record) error {
	if len(entries) == 0 {
		return nil
	}

	batch := protocol.NewBatchMessage(protocol.DatasetTypeJoinEntries, clientID, state.outIndex, entries, false)
	state.outIndex++

	h.pubMu.Lock()
	err := h.pub.SendToDatasetOutputExchanges(batch)
	h.pubMu.Unlock()
	if err != nil {
		log.Printf("action: mapper_publish_entries | result: fail | error: %v", err)
	}
	return err
}

// maybeFinish publishes this mapper's EOF once both input sides have ended
// and every buffered batch has been drained.
func (h *JoinMapperHandler) maybeFinish(state *mapperState, clientID string) error {
	if state.finished || state.filter == nil || !state.stockEOF || !state.dividendEOF {
		return nil
	}

	batch := protocol.NewBatchMessage(protocol.DatasetTypeJoinEntries, clientID, state.outIndex, nil, true)
	state.outIndex++

	h.pubMu.Lock()
	err := h.pub.SendToDatasetOutputExchanges(batch)
	h.pubMu.Unlock()
	if err != nil {
		log.Printf("action: mapper_publish_eof | result: fail | error: %v", err)
		return err
	}

	state.finished = true
	log.Printf("action: mapper_finished | mapper: %s | client_id: %s | batches_published: %d",
		h.mapperID, clientID, state.outIndex)

	return nil
}
