package handlers

import (
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/middleware"
)

// Handler is the contract a pipeline stage must fulfill to plug into the
// generic node.
type Handler interface {
	// Name of the handler, used for logging.
	Name() string

	// StartHandler wires the handler to the node's queue and blocks consuming
	// until the node shuts down. The handler owns publishing and ACK/NACK.
	StartHandler(queueManager *middleware.QueueManager, clientWG *sync.WaitGroup) error

	// Workers is the number of queue workers the handler wants. Stages that
	// serialize state (merger, reconciler) must return 1.
	Workers() int

	// Shutdown flushes whatever the handler holds before the node exits.
	Shutdown() error
}
