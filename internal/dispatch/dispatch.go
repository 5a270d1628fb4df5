// Package dispatch fans decoded row events out across a fixed pool of
// workers, each of which filters by configured routing rules, resolves
// field metadata, builds a Canal JSON record, and enqueues it to the
// matching sink.
package dispatch

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ipconfiger/ru-cdc/internal/binlog"
	"github.com/ipconfiger/ru-cdc/internal/broker"
	"github.com/ipconfiger/ru-cdc/internal/canal"
	"github.com/ipconfiger/ru-cdc/internal/config"
	"github.com/ipconfiger/ru-cdc/internal/logging"
	"github.com/ipconfiger/ru-cdc/internal/schema"
	"github.com/ipconfiger/ru-cdc/internal/sink"
)

// Resolver is the subset of *schema.Resolver the pool depends on,
// accepted as an interface so tests can substitute a stub without a
// real DESC connection.
type Resolver interface {
	Resolve(ctx context.Context, tableID uint64, schemaName, tableName string, columnCount int) ([]schema.Field, error)
}

// Item is one unit of work submitted to the pool: a decoded row event
// plus the binlog file it was read from (the pair's LogPos carries the
// log position).
type Item struct {
	Pair *binlog.RowEventPair
	File string
}

// Pool routes each submitted Item to one of N workers by
// (seq+1) mod N, per §4.4, so consecutive events round-robin across
// workers; events of one table can land on different workers.
type Pool struct {
	workers   []chan Item
	instances []config.Instance
	resolver  Resolver
	router    *sink.Router
	feed      *broker.Broker
	nextID    int64
	done      chan struct{}
}

// NewPool returns a Pool of n workers. Each worker's input channel is
// buffered to bufferSize items. feed may be nil, in which case no copy
// of published records is fanned out to the admin/TUI broker.
func NewPool(n, bufferSize int, instances []config.Instance, resolver Resolver, router *sink.Router, feed *broker.Broker) *Pool {
	p := &Pool{
		workers:   make([]chan Item, n),
		instances: instances,
		resolver:  resolver,
		router:    router,
		feed:      feed,
		done:      make(chan struct{}),
	}
	for i := range p.workers {
		p.workers[i] = make(chan Item, bufferSize)
	}
	return p
}

// Run starts all worker goroutines and blocks until ctx is canceled and
// every worker has drained its channel.
func (p *Pool) Run(ctx context.Context) {
	n := len(p.workers)
	finished := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			p.runWorker(ctx, p.workers[idx])
			finished <- struct{}{}
		}(i)
	}
	for i := 0; i < n; i++ {
		<-finished
	}
	close(p.done)
}

// Submit routes item to worker (seq+1) mod N. It blocks if that
// worker's channel is full, applying backpressure to the ingest loop
// rather than dropping events.
func (p *Pool) Submit(item Item) {
	n := uint64(len(p.workers))
	idx := (item.Pair.Seq + 1) % n
	p.workers[idx] <- item
}

// Close closes every worker's input channel, signaling them to drain
// and exit, then waits for Run to observe all workers finished.
func (p *Pool) Close() {
	for _, ch := range p.workers {
		close(ch)
	}
	<-p.done
}

func (p *Pool) runWorker(ctx context.Context, in chan Item) {
	for {
		select {
		case item, ok := <-in:
			if !ok {
				return
			}
			p.handle(ctx, item)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) handle(ctx context.Context, item Item) {
	pair := item.Pair
	table := pair.Table

	for _, inst := range p.instances {
		if !inst.Matches(table.Schema, table.Table) {
			continue
		}

		fields, err := p.resolver.Resolve(ctx, table.TableID, table.Schema, table.Table, len(table.ColumnTypes))
		if err != nil {
			logging.Errorf("dispatch: %s.%s: %v", table.Schema, table.Table, err)
			continue
		}

		record := canal.Record{
			Schema:    table.Schema,
			Table:     table.Table,
			DML:       pair.DML,
			EventTSms: int64(pair.EventTS) * 1000,
			LogPos:    pair.LogPos,
			Fields:    fields,
			OldRows:   pair.OldRows,
			NewRows:   pair.NewRows,
		}

		id := atomic.AddInt64(&p.nextID, 1)
		payload, err := canal.Build(record, id)
		if err != nil {
			logging.Errorf("dispatch: build record for %s.%s: %v", table.Schema, table.Table, err)
			continue
		}

		msg := sink.Message{Topic: inst.Topic, Payload: payload, File: item.File, Offset: pair.LogPos}
		if !p.router.Publish(inst.MQ, msg) {
			logging.Warnf("dispatch: sink %s full, dropping event for %s.%s at %s:%d", inst.MQ, table.Schema, table.Table, item.File, pair.LogPos)
		}

		if p.feed != nil {
			p.feed.Publish(broker.Record{
				EventID:  uuid.NewString(),
				Instance: inst.MQ,
				Topic:    inst.Topic,
				Schema:   table.Schema,
				Table:    table.Table,
				DML:      string(pair.DML),
				Payload:  payload,
			})
		}
	}
}
