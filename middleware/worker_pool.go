package middleware

import (
	"log"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	amqp "github.com/rabbitmq/amqp091-go"
)

// WorkerPool manages a pool of workers that consume from one queue
type WorkerPool struct {
	workers    []*Worker
	numWorkers int
	queueName  string
	connection *amqp.Connection
	callback   func(batch *protocol.BatchMessage, delivery amqp.Delivery)
	shutdownCh chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewWorkerPool creates a new worker pool for a specific queue
func NewWorkerPool(
	queueName string,
	connection *amqp.Connection,
	callback func(batch *protocol.BatchMessage, delivery amqp.Delivery),
	numWorkers int,
) *WorkerPool {
	return &WorkerPool{
		workers:    make([]*Worker, 0, numWorkers),
		numWorkers: numWorkers,
		queueName:  queueName,
		connection: connection,
		callback:   callback,
		shutdownCh: make(chan struct{}),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() error {
	for i := 0; i < wp.numWorkers; i++ {
		worker, err := NewWorker(i, wp.queueName, wp.connection, wp.callback, wp.shutdownCh)
		if err != nil {
			log.Printf("action: worker_pool_create_worker | worker_id: %d | queue: %s | result: fail | error: %v",
				i, wp.queueName, err)
			wp.Stop()
			return err
		}

		wp.workers = append(wp.workers, worker)
		wp.wg.Add(1)

		go func(w *Worker) {
			defer wp.wg.Done()
			w.Start()
		}(worker)
	}

	log.Printf("action: worker_pool_start | result: success | queue: %s | workers: %d",
		wp.queueName, wp.numWorkers)

	return nil
}

// Stop signals all workers to shut down and waits for them to finish
func (wp *WorkerPool) Stop() {
	wp.stopOnce.Do(func() {
		close(wp.shutdownCh)
	})
	wp.wg.Wait()
}

// Wait blocks until every worker has exited
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}
