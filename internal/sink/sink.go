// Package sink publishes Canal JSON records to configured downstream
// buses (Kafka topics, Redis lists), each behind its own bounded channel
// and producer goroutine.
package sink

import "context"

// Message is one record queued for a sink.
type Message struct {
	Topic   string
	Payload []byte
	File    string
	Offset  uint32
}

// PositionNotifier is invoked after every successful publish with the
// binlog position the message carried, so the position manager can
// advance the persisted checkpoint. A failed publish must not call this.
type PositionNotifier func(file string, offset uint32)

// Sink is a configured downstream publisher: a bounded input channel
// plus a producer goroutine that drains it in order.
type Sink interface {
	// Name identifies this sink for logging.
	Name() string
	// Enqueue attempts a non-blocking send; it returns false if the
	// channel is full (callers treat a full sink as backpressure).
	Enqueue(msg Message) bool
	// Run drains the input channel until ctx is canceled or Close is
	// called, publishing each message in order.
	Run(ctx context.Context)
	// Close closes the input channel, signaling Run to drain and exit.
	Close()
}
