package sink

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ipconfiger/ru-cdc/internal/logging"
)

// kafkaChanBuffer is the depth of a KafkaSink's input channel, a
// backpressure knob independent of the producer's batching config.
const kafkaChanBuffer = 256

// KafkaSink publishes messages to a Kafka topic via a batching writer.
type KafkaSink struct {
	name   string
	writer *kafka.Writer
	in     chan Message
	notify PositionNotifier
	closed chan struct{}
}

// NewKafkaSink returns a KafkaSink writing to brokers. queueBufferingMax
// is the configured `queue.buffering.max.ms` value (§6
// mq.kafka.queue_buffering_max), applied as the writer's BatchTimeout —
// how long a batch may sit before being flushed — not the channel
// buffer depth.
func NewKafkaSink(name string, brokers []string, queueBufferingMax int, notify PositionNotifier) *KafkaSink {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: time.Duration(queueBufferingMax) * time.Millisecond,
		WriteTimeout: 5 * time.Second,
		RequiredAcks: kafka.RequireOne,
	}
	return &KafkaSink{
		name:   name,
		writer: w,
		in:     make(chan Message, kafkaChanBuffer),
		notify: notify,
		closed: make(chan struct{}),
	}
}

func (s *KafkaSink) Name() string { return s.name }

func (s *KafkaSink) Enqueue(msg Message) bool {
	select {
	case s.in <- msg:
		return true
	default:
		return false
	}
}

func (s *KafkaSink) Run(ctx context.Context) {
	defer close(s.closed)
	for {
		select {
		case msg, ok := <-s.in:
			if !ok {
				return
			}
			err := s.writer.WriteMessages(ctx, kafka.Message{
				Topic: msg.Topic,
				Value: msg.Payload,
			})
			if err != nil {
				logging.Warnf("sink kafka[%s]: publish to %s: %v", s.name, msg.Topic, err)
				continue
			}
			if s.notify != nil {
				s.notify(msg.File, msg.Offset)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *KafkaSink) Close() {
	close(s.in)
	<-s.closed
	_ = s.writer.Close()
}
