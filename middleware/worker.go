package middleware

import (
	"log"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Worker consumes batches from a queue on its own dedicated channel and
// processes them sequentially through a callback.
type Worker struct {
	id         int
	queueName  string
	connection *amqp.Connection
	channel    *amqp.Channel
	callback   func(batch *protocol.BatchMessage, delivery amqp.Delivery)
	shutdownCh chan struct{}
	doneCh     chan struct{}
}

// NewWorker creates a new worker with its own dedicated channel
func NewWorker(
	id int,
	queueName string,
	connection *amqp.Connection,
	callback func(batch *protocol.BatchMessage, delivery amqp.Delivery),
	shutdownCh chan struct{},
) (*Worker, error) {
	channel, err := connection.Channel()
	if err != nil {
		return nil, err
	}

	// QoS with prefetch=1 for fair dispatch across workers
	if err := channel.Qos(1, 0, false); err != nil {
		channel.Close()
		return nil, err
	}

	return &Worker{
		id:         id,
		queueName:  queueName,
		connection: connection,
		channel:    channel,
		callback:   callback,
		shutdownCh: shutdownCh,
		doneCh:     make(chan struct{}),
	}, nil
}

// Start begins consuming messages from the queue
func (w *Worker) Start() {
	defer close(w.doneCh)
	defer w.cleanup()

	msgs, err := w.channel.Consume(
		w.queueName, // queue
		"",          // consumer tag (auto-generated)
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		log.Printf("action: worker_start | worker_id: %d | queue: %s | result: fail | error: %v",
			w.id, w.queueName, err)
		return
	}

	for {
		select {
		case <-w.shutdownCh:
			log.Printf("action: worker_shutdown | worker_id: %d | queue: %s | result: received_shutdown_signal",
				w.id, w.queueName)
			return

		case msg, ok := <-msgs:
			if !ok {
				log.Printf("action: worker_channel_closed | worker_id: %d | queue: %s",
					w.id, w.queueName)
				return
			}

			w.processMessage(msg)
		}
	}
}

// processMessage parses and handles a single delivery
func (w *Worker) processMessage(msg amqp.Delivery) {
	if len(msg.Body) == 0 {
		log.Printf("action: worker_parse | worker_id: %d | queue: %s | result: fail | error: empty message body",
			w.id, w.queueName)
		msg.Ack(false)
		return
	}

	if msg.Body[0] != protocol.MessageTypeBatch {
		log.Printf("action: worker_parse | worker_id: %d | queue: %s | result: fail | error: unknown message type: %d",
			w.id, w.queueName, msg.Body[0])
		msg.Ack(false)
		return
	}

	batchMessage, err := protocol.BatchMessageFromData(msg.Body)
	if err != nil {
		log.Printf("action: worker_parse | worker_id: %d | queue: %s | result: fail | error: %v",
			w.id, w.queueName, err)
		msg.Ack(false)
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("action: worker_process | worker_id: %d | queue: %s | result: panic | error: %v",
					w.id, w.queueName, r)
				msg.Nack(false, true)
			}
		}()

		w.callback(batchMessage, msg)
	}()
}

// Done returns a channel that is closed when the worker has finished
func (w *Worker) Done() <-chan struct{} {
	return w.doneCh
}

// cleanup closes the worker's channel
func (w *Worker) cleanup() {
	if w.channel != nil {
		if err := w.channel.Close(); err != nil && err != amqp.ErrClosed {
			log.Printf("action: worker_cleanup | worker_id: %d | queue: %s | result: fail | error: %v",
				w.id, w.queueName, err)
		}
	}
}
