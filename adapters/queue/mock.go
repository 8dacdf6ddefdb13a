package queue

import (
	"github.com/streadway/amqp"
)

// MockChannel is a dependency-free stand-in for Channel, following
// queue/amqp_mock.go's MockAMQPChannel shape: published messages captured
// for assertions, a single buffered delivery channel so Consume/Pop can be
// exercised without a broker.
type MockChannel struct {
	Declared  []string
	Published []amqp.Publishing

	deliveries chan amqp.Delivery
}

// NewMockChannel creates a mock with a small internal delivery buffer.
func NewMockChannel() *MockChannel {
	return &MockChannel{deliveries: make(chan amqp.Delivery, 64)}
}

func (m *MockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	m.Declared = append(m.Declared, name)
	return amqp.Queue{Name: name}, nil
}

func (m *MockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	m.Published = append(m.Published, msg)
	m.deliveries <- amqp.Delivery{Body: msg.Body, Acknowledger: noopAcknowledger{}}
	return nil
}

// noopAcknowledger satisfies amqp.Acknowledger so Delivery.Ack can be called
// on mock-produced deliveries without a live broker connection behind them.
type noopAcknowledger struct{}

func (noopAcknowledger) Ack(tag uint64, multiple bool) error             { return nil }
func (noopAcknowledger) Nack(tag uint64, multiple, requeue bool) error   { return nil }
func (noopAcknowledger) Reject(tag uint64, requeue bool) error           { return nil }

func (m *MockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	return m.deliveries, nil
}
