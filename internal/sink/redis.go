package sink

import (
	"context"
	"fmt"

	"github.com/gomodule/redigo/redis"

	"github.com/ipconfiger/ru-cdc/internal/logging"
)

// RedisSink publishes messages to a Redis list (RPUSH) keyed by topic,
// via a pooled connection.
type RedisSink struct {
	name   string
	pool   *redis.Pool
	in     chan Message
	notify PositionNotifier
	closed chan struct{}
}

// NewRedisSink returns a RedisSink connecting to addr ("ip:port").
func NewRedisSink(name, addr string, queueBufferingMax int, notify PositionNotifier) *RedisSink {
	pool := &redis.Pool{
		MaxIdle:   4,
		MaxActive: 8,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", addr)
		},
	}
	return &RedisSink{
		name:   name,
		pool:   pool,
		in:     make(chan Message, queueBufferingMax),
		notify: notify,
		closed: make(chan struct{}),
	}
}

func (s *RedisSink) Name() string { return s.name }

func (s *RedisSink) Enqueue(msg Message) bool {
	select {
	case s.in <- msg:
		return true
	default:
		return false
	}
}

func (s *RedisSink) Run(ctx context.Context) {
	defer close(s.closed)
	for {
		select {
		case msg, ok := <-s.in:
			if !ok {
				return
			}
			if err := s.publish(msg); err != nil {
				logging.Warnf("sink redis[%s]: publish to %s: %v", s.name, msg.Topic, err)
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

func (s *RedisSink) publish(msg Message) error {
	conn := s.pool.Get()
	defer conn.Close()
	if _, err := conn.Do("RPUSH", msg.Topic, msg.Payload); err != nil {
		return fmt.Errorf("sink redis: rpush %s: %w", msg.Topic, err)
	}
	return nil
}

func (s *RedisSink) Close() {
	close(s.in)
	<-s.closed
	_ = s.pool.Close()
}
