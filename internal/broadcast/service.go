// Package broadcast fans a channel post out to its recipients, consulting
// the preference cache to suppress muted deliveries, count missed messages,
// and throttle "you missed N messages" notices.
package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"talkgroups/internal/messages"
	"talkgroups/internal/prefs"
	"talkgroups/internal/transport"
	logx "talkgroups/pkg/logx"
)

var ErrQueueFull = errors.New("broadcast: queue full")

type Service struct {
	cfg     Config
	adapter transport.Adapter
	prefs   *prefs.Manager
	catalog *messages.Catalog
	log     logx.Logger

	limiter *rate.Limiter
	queue   chan Message

	runMu     sync.Mutex
	running   bool
	runCancel context.CancelFunc
	workerWG  sync.WaitGroup
}

func New(cfg Config, adapter transport.Adapter, pm *prefs.Manager, catalog *messages.Catalog, log logx.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 128
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 20
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		prefs:   pm,
		catalog: catalog,
		log:     log,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
		queue:   make(chan Message, cfg.QueueSize),
	}
}

func (s *Service) Start(ctx context.Context) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	rctx, cancel := context.WithCancel(ctx)
	s.runCancel = cancel
	s.workerWG.Add(s.cfg.Workers)
	for i := 0; i < s.cfg.Workers; i++ {
		go s.worker(rctx)
	}
}

// Stop cancels the workers. Queued but undelivered posts are dropped; the
// preference cache, not this queue, is the durable state.
func (s *Service) Stop() {
	s.runMu.Lock()
	cancel := s.runCancel
	s.runCancel = nil
	wasRunning := s.running
	s.running = false
	s.runMu.Unlock()

	if !wasRunning {
		return
	}
	if cancel != nil {
		cancel()
	}
	s.workerWG.Wait()
}

// Submit enqueues a post for fan-out. Non-blocking.
func (s *Service) Submit(msg Message) error {
	select {
	case s.queue <- msg:
		return nil
	default:
		s.log.Warn("broadcast dropped (queue full)",
			logx.String("channel", msg.Channel.ID),
			logx.Int("recipients", len(msg.Recipients)))
		return ErrQueueFull
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.workerWG.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.queue:
			s.deliver(ctx, msg)
		}
	}
}

func (s *Service) sendOne(ctx context.Context, to transport.ChatTarget, text string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	var last error
	for i := 0; i <= s.cfg.RetryMax; i++ {
		err := s.adapter.SendText(ctx, to, text, &transport.SendOptions{DisablePreview: true})
		if err == nil {
			return nil
		}
		last = err
		if i == s.cfg.RetryMax {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !t.Stop() {
				<-t.C
			}
			return ctx.Err()
		case <-t.C:
		}
	}
	return last
}
