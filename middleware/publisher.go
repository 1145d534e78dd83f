package middleware

import (
	"fmt"

	"github.com/distribuidos-Stock-Dividend-Join/nodes/common"
	"github.com/distribuidos-Stock-Dividend-Join/nodes/protocol"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher holds a dedicated channel for publishing batches along the
// node's output routes. Create one per handler and reuse it.
type Publisher struct {
	channel *amqp.Channel
	wiring  *common.NodeWiring
}

func NewPublisher(connection *amqp.Connection, wiring *common.NodeWiring) (*Publisher, error) {
	ch, err := connection.Channel()
	if err != nil {
		return nil, err
	}

	return &Publisher{
		channel: ch,
		wiring:  wiring,
	}, nil
}

// SendToDatasetOutputExchanges publishes a batch along the wiring's route for
// its dataset type, with the route's default routing key.
func (p *Publisher) SendToDatasetOutputExchanges(b *protocol.BatchMessage) error {
	route, ok := p.wiring.Outputs[b.DatasetType]
	if !ok {
		return fmt.Errorf("no output route for dataset %v in role %s", b.DatasetType, p.wiring.Role)
	}
	return p.publish(route.Exchange, route.RoutingKey, protocol.EncodeToByteArray(b))
}

// SendWithRoutingKey publishes a batch along the wiring's route for its
// dataset type, overriding the routing key. Used to address one partition of
// a downstream worker set.
func (p *Publisher) SendWithRoutingKey(b *protocol.BatchMessage, routingKey string) error {
	route, ok := p.wiring.Outputs[b.DatasetType]
	if !ok {
		return fmt.Errorf("no output route for dataset %v in role %s", b.DatasetType, p.wiring.Role)
	}
	return p.publish(route.Exchange, routingKey, protocol.EncodeToByteArray(b))
}

func (p *Publisher) publish(exchange, rk string, body []byte) error {
	return p.channel.Publish(exchange, rk, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

func (p *Publisher) Close() {
	p.channel.Close()
}
