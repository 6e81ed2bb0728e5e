package prefs

import (
	"context"
	"errors"
	"sync"
	"time"

	"talkgroups/internal/storage"
	logx "talkgroups/pkg/logx"
)

// ErrGatewayClosed is reported for operations enqueued after Close.
var ErrGatewayClosed = errors.New("prefs: gateway closed")

// GatewayConfig tunes the async store facade.
//
// Workers defaults to 1, which keeps store writes in issue order. Raising it
// trades ordering for throughput; the Manager's clear-then-rewrite save
// reconciles any resulting drift.
type GatewayConfig struct {
	Workers   int
	QueueSize int
	OpTimeout time.Duration
}

// Gateway is the asynchronous facade over the durable mute-set store. Every
// operation returns immediately with a Pending that settles when the store
// call finishes. A nil store (persistence disabled) settles everything
// instantly: loads yield empty sets, writes succeed as no-ops.
type Gateway struct {
	store     storage.Store
	log       logx.Logger
	opTimeout time.Duration

	mu     sync.Mutex
	closed bool
	queue  chan func()
	wg     sync.WaitGroup
}

func NewGateway(store storage.Store, cfg GatewayConfig, log logx.Logger) *Gateway {
	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1024
	}
	opTimeout := cfg.OpTimeout
	if opTimeout <= 0 {
		opTimeout = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	g := &Gateway{
		store:     store,
		log:       log,
		opTimeout: opTimeout,
		queue:     make(chan func(), queueSize),
	}
	g.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go g.worker()
	}
	return g
}

func (g *Gateway) worker() {
	defer g.wg.Done()
	for fn := range g.queue {
		fn()
	}
}

// Close stops accepting new operations, drains everything already queued,
// and waits for the workers to exit. The underlying store stays open; its
// lifetime belongs to the caller.
func (g *Gateway) Close() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.queue)
	g.mu.Unlock()
	g.wg.Wait()
}

// enqueue hands fn to the worker pool. Returns false when the gateway is
// closed or the queue is saturated.
func (g *Gateway) enqueue(fn func()) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return false
	}
	select {
	case g.queue <- fn:
		return true
	default:
		return false
	}
}

func (g *Gateway) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), g.opTimeout)
}

// LoadMuted fetches the persisted mute set for a user. A store failure is
// logged and degrades to an empty set so session start never blocks on a
// broken store.
func (g *Gateway) LoadMuted(userID string) *LoadPending {
	p := newLoadPending()
	if g.store == nil {
		p.complete(nil)
		return p
	}
	ok := g.enqueue(func() {
		ctx, cancel := g.opCtx()
		defer cancel()
		set, err := g.store.LoadMuted(ctx, userID)
		if err != nil {
			g.log.Warn("muted-channel load failed; starting empty",
				logx.String("user", userID), logx.Err(err))
			p.complete(nil)
			return
		}
		p.complete(set)
	})
	if !ok {
		g.log.Warn("muted-channel load dropped (gateway closed or saturated)",
			logx.String("user", userID))
		p.complete(nil)
	}
	return p
}

// AddMuted persists one muted channel row. Idempotent upsert.
func (g *Gateway) AddMuted(userID, channelID string) *Pending {
	return g.write("add", userID, channelID, func(ctx context.Context) error {
		return g.store.AddMuted(ctx, userID, channelID)
	})
}

// RemoveMuted deletes one muted channel row. No-op if absent.
func (g *Gateway) RemoveMuted(userID, channelID string) *Pending {
	return g.write("remove", userID, channelID, func(ctx context.Context) error {
		return g.store.RemoveMuted(ctx, userID, channelID)
	})
}

// ClearMuted deletes every muted channel row for the user.
func (g *Gateway) ClearMuted(userID string) *Pending {
	return g.write("clear", userID, "", func(ctx context.Context) error {
		return g.store.ClearMuted(ctx, userID)
	})
}

func (g *Gateway) write(op, userID, channelID string, fn func(ctx context.Context) error) *Pending {
	if g.store == nil {
		return completedPending(nil)
	}
	p := newPending()
	ok := g.enqueue(func() {
		ctx, cancel := g.opCtx()
		defer cancel()
		err := fn(ctx)
		if err != nil {
			g.log.Warn("muted-channel write failed; memory stays authoritative",
				logx.String("op", op),
				logx.String("user", userID),
				logx.String("channel", channelID),
				logx.Err(err))
		}
		p.complete(err)
	})
	if !ok {
		g.log.Warn("muted-channel write rejected (gateway closed or saturated)",
			logx.String("op", op), logx.String("user", userID))
		p.complete(ErrGatewayClosed)
	}
	return p
}
