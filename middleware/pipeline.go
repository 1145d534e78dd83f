package middleware

import (
	"log"
	"sync"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	amqp "github.com/rabbitmq/amqp091-go"
)

// PipelineConfig holds configuration for the consumer/processor pipeline used
// by the high-volume scan roles.
type PipelineConfig struct {
	NumConsumers     int // RabbitMQ consumer goroutines
	ConsumerPrefetch int // prefetch count per consumer
	NumProcessors    int // processing goroutines
	InputBufferSize  int // consumer -> processor channel buffer
}

// DefaultPipelineConfig returns sensible defaults for the pipeline
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		NumConsumers:     4,
		ConsumerPrefetch: 50,
		NumProcessors:    32,
		InputBufferSize:  256,
	}
}

// MessagePacket wraps a batch message with its delivery for ACK tracking
type MessagePacket struct {
	Batch    *protocol.BatchMessage
	Delivery amqp.Delivery
}

// ProcessorFunc processes one batch. The callback handles everything:
// processing, publishing, and ACK/NACK.
type ProcessorFunc func(batch *protocol.BatchMessage, delivery amqp.Delivery)

// Pipeline orchestrates the consumer -> processor flow
type Pipeline struct {
	config PipelineConfig

	inputChan chan MessagePacket

	consumers  []*Consumer
	processors []*Processor

	shutdownCh chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup

	connection *amqp.Connection
}

// NewPipeline creates a new pipeline with the given configuration
func NewPipeline(config PipelineConfig, connection *amqp.Connection) *Pipeline {
	return &Pipeline{
		config:     config,
		connection: connection,
		inputChan:  make(chan MessagePacket, config.InputBufferSize),
		shutdownCh: make(chan struct{}),
		consumers:  make([]*Consumer, 0, config.NumConsumers),
		processors: make([]*Processor, 0, config.NumProcessors),
	}
}

// Start initializes and starts all pipeline components
func (p *Pipeline) Start(queueName string, processorFunc ProcessorFunc) error {
	log.Printf("action: pipeline_start | consumers: %d | processors: %d | prefetch: %d | buffer: %d",
		p.config.NumConsumers, p.config.NumProcessors, p.config.ConsumerPrefetch, p.config.InputBufferSize)

	// Processors first: they must be ready to receive from inputChan
	for i := 0; i < p.config.NumProcessors; i++ {
		proc := NewProcessor(i, p.inputChan, processorFunc, p.shutdownCh)
		p.processors = append(p.processors, proc)
		p.wg.Add(1)
		go func(pr *Processor) {
			defer p.wg.Done()
			pr.Start()
		}(proc)
	}

	for i := 0; i < p.config.NumConsumers; i++ {
		consumer, err := NewConsumer(i, queueName, p.connection, p.inputChan, p.config.ConsumerPrefetch, p.shutdownCh)
		if err != nil {
			log.Printf("action: pipeline_create_consumer | consumer_id: %d | result: fail | error: %v", i, err)
			p.Stop()
			return err
		}
		p.consumers = append(p.consumers, consumer)
		p.wg.Add(1)
		go func(c *Consumer) {
			defer p.wg.Done()
			c.Start()
		}(consumer)
	}

	log.Printf("action: pipeline_started | queue: %s", queueName)

	return nil
}

// Stop gracefully shuts down the pipeline
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.shutdownCh)
	})
	p.wg.Wait()
	log.Println("action: pipeline_stop | result: success")
}

// Wait blocks until the pipeline finishes
func (p *Pipeline) Wait() {
	p.wg.Wait()
}
