package node

import (
	"log"
	"sync"
	"time"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/middleware"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/node/handlers"
)

// Node is a generic pipeline worker: it connects its queue manager, hands the
// queue to its stage handler and keeps running until shutdown.
type Node struct {
	queueManager      *middleware.QueueManager
	handler           handlers.Handler
	clientWG          sync.WaitGroup
	shutdownRequested bool
	shutdownMu        sync.Mutex
	shutdownChan      chan struct{}
}

func NewNode(handler handlers.Handler, queueManager *middleware.QueueManager) *Node {
	n := &Node{
		queueManager: queueManager,
		handler:      handler,
		shutdownChan: make(chan struct{}),
	}

	log.Printf("action: node_init | handler: %s | result: success", handler.Name())
	return n
}

// Run is the node entry point: it blocks consuming until the handler stops or
// shutdown is requested.
func (n *Node) Run() error {
	defer n.shutdown()

	if err := n.queueManager.Connect(); err != nil {
		log.Printf("action: node_startup | result: fail | error: Could not connect to RabbitMQ: %v", err)
		return err
	}

	log.Printf("action: node_started | handler: %s | result: success", n.handler.Name())

	// StartHandler blocks while consuming; run it aside so shutdown can
	// interrupt the wait
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.handler.StartHandler(n.queueManager, &n.clientWG)
	}()

	select {
	case <-n.shutdownChan:
		log.Printf("action: node_shutdown | handler: %s | result: requested", n.handler.Name())
		return nil
	case err := <-errCh:
		if err != nil {
			log.Printf("action: node_consume | handler: %s | result: fail | error: %v", n.handler.Name(), err)
		}
		return err
	}
}

// Shutdown gracefully shuts down the node
func (n *Node) Shutdown() {
	close(n.shutdownChan)
	n.shutdown()
}

// shutdown performs the actual shutdown operations
func (n *Node) shutdown() {
	n.shutdownMu.Lock()
	if n.shutdownRequested {
		n.shutdownMu.Unlock()
		return
	}
	n.shutdownRequested = true
	n.shutdownMu.Unlock()

	log.Printf("action: node_shutdown | handler: %s | result: start", n.handler.Name())

	if n.queueManager != nil {
		n.queueManager.StopConsuming()
	}

	done := make(chan struct{})
	go func() {
		n.clientWG.Wait()
		_ = n.handler.Shutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Printf("action: node_shutdown | handler: %s | result: timeout_on_handler_close", n.handler.Name())
	}

	if n.queueManager != nil {
		if err := n.queueManager.Close(); err != nil {
			log.Printf("action: node_shutdown | result: warn | msg: error_closing_rabbit | error: %v", err)
		}
	}
	log.Printf("action: node_shutdown | handler: %s | result: success", n.handler.Name())
}
