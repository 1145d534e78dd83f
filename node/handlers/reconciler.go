package handlers

import (
	"log"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/join"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/middleware"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/prom"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/storage"
	"github.com/rabbitmq/amqp091-go"
)

// ReconcilerHandler is the grouped reduce of stage 2. Join entries from every
// mapper land here; they are accumulated into (symbol, date) groups that keep
// the dividend structurally apart from the stock values, so arrival order
// does not matter. When all mappers have reported EOF the groups are
// finalized: each stock value in a confirmed group becomes one output row,
// each group with stocks but no dividend is a Bloom filter false positive.
type ReconcilerHandler struct {
	expectedMappers int
	writer          *storage.OutputWriter

	mu     sync.Mutex
	states map[string]*reconcilerState // keyed by run (client) id

	pub   *middleware.Publisher
	pubMu sync.Mutex
}

type reconcilerState struct {
	acc        *join.Accumulator
	mapperEOFs int
	cleared    bool
}

// NewReconcilerHandler creates the reconciler for the configured mapper count
// and output path.
func NewReconcilerHandler(cfg *common.JoinConfig) *ReconcilerHandler {
	return &ReconcilerHandler{
		expectedMappers: cfg.ExpectedMappers,
		writer:          storage.NewOutputWriter(cfg.OutputPath),
		states:          make(map[string]*reconcilerState),
	}
}

// Name returns the handler name
func (h *ReconcilerHandler) Name() string {
	return "reconciler"
}

// Workers returns 1: groups are finalized at a single barrier.
func (h *ReconcilerHandler) Workers() int {
	return 1
}

// Shutdown logs any runs that never completed
func (h *ReconcilerHandler) Shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for clientID, state := range h.states {
		log.Printf("action: reconciler_shutdown | client_id: %s | result: incomplete | open_groups: %d",
			clientID, state.acc.Groups())
	}
	return nil
}

// StartHandler starts consuming join entries
func (h *ReconcilerHandler) StartHandler(queueManager *middleware.QueueManager, clientWG *sync.WaitGroup) error {
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
		log.Printf("action: reconciler_consume | result: fail | error: %v", err)
		return err
	}
	return nil
}

// Handle accumulates one batch of join entries and finalizes the run once
// every mapper has reported EOF.
func (h *ReconcilerHandler) Handle(batchMessage *protocol.BatchMessage, clientWG *sync.WaitGroup, msg amqp091.Delivery) error {
	clientWG.Add(1)
	defer clientWG.Done()

	if batchMessage.DatasetType != protocol.DatasetTypeJoinEntries {
		log.Printf("action: reconciler_handle | result: fail | error: unsupported dataset type: %s",
			batchMessage.DatasetType)
		msg.Ack(false)
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state, ok := h.states[batchMessage.ClientID]
	if !ok {
		state = &reconcilerState{acc: join.NewAccumulator()}
		h.states[batchMessage.ClientID] = state
	}

	if !state.cleared {
		// Fresh run: clear whatever a previous run left at the output path
		if err := h.writer.Clear(); err != nil {
			log.Printf("action: reconciler_clear_output | client_id: %s | result: fail | error: %v",
				batchMessage.ClientID, err)
			msg.Nack(false, true)
			return err
		}
		state.cleared = true
	}

	for _, record := range batchMessage.Records {
		entry, ok := record.(*protocol.JoinEntryRecord)
		if !ok {
			continue
		}
		state.acc.Add(entry)
	}

	if batchMessage.EOF {
		state.mapperEOFs++
		log.Printf("action: reconciler_mapper_eof | client_id: %s | mappers_done: %d | expected: %d",
			batchMessage.ClientID, state.mapperEOFs, h.expectedMappers)
	}

	if state.mapperEOFs >= h.expectedMappers {
		if err := h.finishRun(batchMessage.ClientID, batchMessage.BatchIndex, state); err != nil {
			msg.Nack(false, true)
			return err
		}
		delete(h.states, batchMessage.ClientID)
	}

	msg.Ack(false)
	return nil
}

// finishRun finalizes the groups, writes the output file and publishes the
// joined rows downstream.
func (h *ReconcilerHandler) finishRun(clientID string, batchIndex int, state *reconcilerState) error {
	rows, falsePositives := state.acc.Finalize()

	prom.RowsJoined.Add(float64(len(rows)))
	prom.FalsePositives.Add(float64(falsePositives))
	if falsePositives > 0 {
		log.Printf("action: reconciler_false_positives | client_id: %s | count: %d",
			clientID, falsePositives)
	}

	if err := h.writer.Write(rows); err != nil {
		log.Printf("action: reconciler_write_output | client_id: %s | result: fail | error: %v",
			clientID, err)
		return err
	}

	records := make([]protocol.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row)
	}
	batch := protocol.NewBatchMessage(protocol.DatasetTypeJoined, clientID, batchIndex, records, true)

	h.pubMu.Lock()
	err := h.pub.SendToDatasetOutputExchanges(batch)
	h.pubMu.Unlock()
	if err != nil {
		log.Printf("action: reconciler_publish | client_id: %s | result: fail | error: %v", clientID, err)
		return err
	}

	log.Printf("action: reconciler_finished | client_id: %s | result: success | rows: %d | false_positives: %d",
		clientID, len(rows), falsePositives)

	return nil
}
