package middleware

import (
	"fmt"
	"log"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	amqp "github.com/rabbitmq/amqp091-go"
)

// QueueManager manages the RabbitMQ connection and the queue/exchange
// topology of a single pipeline node, as described by its wiring.
type QueueManager struct {
	host     string
	port     int
	username string
	password string

	Connection *amqp.Connection
	channel    *amqp.Channel
	Wiring     *common.NodeWiring

	pool *WorkerPool
}

// NewQueueManager creates a QueueManager for the given node wiring
func NewQueueManager(wiring *common.NodeWiring) *QueueManager {
	rabbitmqConfig := common.GetConfig().GetRabbitmqConfig()

	qm := &QueueManager{
		host:     rabbitmqConfig.Host,
		port:     rabbitmqConfig.Port,
		username: rabbitmqConfig.Username,
		password: rabbitmqConfig.Password,
		Wiring:   wiring,
	}

	log.Printf("action: queue_manager_init | role: %s | node_id: %s | queue: %s",
		wiring.Role, wiring.NodeID, wiring.QueueName)

	return qm
}

// Connect establishes the connection and declares this node's topology:
// durable direct exchanges, the input queue (if the role consumes) and its
// bindings.
func (qm *QueueManager) Connect() error {
	var err error

	connStr := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		qm.username, qm.password, qm.host, qm.port)

	qm.Connection, err = amqp.Dial(connStr)
	if err != nil {
		log.Printf("action: rabbitmq_connect | result: fail | error: %v", err)
		return err
	}

	qm.channel, err = qm.Connection.Channel()
	if err != nil {
		log.Printf("action: rabbitmq_channel | result: fail | error: %v", err)
		return err
	}

	for _, exchange := range qm.Wiring.DeclareExchs {
		err = qm.channel.ExchangeDeclare(
			exchange, // name
			"direct", // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // arguments
		)
		if err != nil {
			log.Printf("action: exchange_declare | result: fail | exchange: %s | error: %v",
				exchange, err)
			return err
		}
	}

	if qm.Wiring.QueueName != "" {
		_, err = qm.channel.QueueDeclare(
			qm.Wiring.QueueName, // name
			true,                // durable
			false,               // delete when unused
			false,               // exclusive
			false,               // no-wait
			nil,                 // arguments
		)
		if err != nil {
			log.Printf("action: queue_declare | result: fail | queue: %s | error: %v",
				qm.Wiring.QueueName, err)
			return err
		}

		for _, binding := range qm.Wiring.Bindings {
			err = qm.channel.QueueBind(
				qm.Wiring.QueueName, // queue
				binding.RoutingKey,  // routing key
				binding.Exchange,    // exchange
				false,               // no-wait
				nil,                 // arguments
			)
			if err != nil {
				log.Printf("action: queue_bind | result: fail | queue: %s | exchange: %s | error: %v",
					qm.Wiring.QueueName, binding.Exchange, err)
				return err
			}
		}
	}

	log.Printf("action: rabbitmq_connect | result: success | host: %s | queue: %s",
		qm.host, qm.Wiring.QueueName)

	return nil
}

// StartConsuming runs a worker pool over the node's input queue and calls the
// callback for every parsed batch. It blocks until StopConsuming is called or
// every worker has exited.
func (qm *QueueManager) StartConsuming(callback func(*protocol.BatchMessage, amqp.Delivery), numWorkers int) error {
	if qm.Wiring.QueueName == "" {
		return fmt.Errorf("role %s has no input queue to consume from", qm.Wiring.Role)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	qm.pool = NewWorkerPool(qm.Wiring.QueueName, qm.Connection, callback, numWorkers)
	if err := qm.pool.Start(); err != nil {
		log.Printf("action: start_consuming | result: fail | error: %v", err)
		return err
	}

	log.Printf("action: start_consuming | result: success | queue: %s | workers: %d",
		qm.Wiring.QueueName, numWorkers)

	qm.pool.Wait()
	return nil
}

// StopConsuming stops the worker pool
func (qm *QueueManager) StopConsuming() {
	if qm.pool != nil {
		qm.pool.Stop()
	}
	log.Println("action: stop_consuming | result: success")
}

// Close closes the connection
func (qm *QueueManager) Close() error {
	var err error
	if qm.Connection != nil && !qm.Connection.IsClosed() {
		err = qm.Connection.Close()
	}
	if err != nil {
		log.Printf("action: close | result: fail | error: %v", err)
	} else {
		log.Println("action: close | result: success")
	}
	return err
}
