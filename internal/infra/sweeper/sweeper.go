package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Swept is the minimal interface the sweeper needs from the job cache.
type Swept interface {
	// Sweep removes terminal entries older than the cache's max age and
	// returns how many were dropped. Must be idempotent.
	Sweep() int
}

// Sweeper periodically runs the cache's TTL cleanup.
type Sweeper struct {
	interval time.Duration
	target   Swept
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper constructs a sweeper running target.Sweep every interval.
// If interval <= 0 it defaults to 30 seconds.
func NewSweeper(interval time.Duration, target Swept, logger *zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Sweeper{
		interval: interval,
		target:   target,
		log:      logger,
		done:     make(chan struct{}),
	}
}

// Start begins the sweep loop in a background goroutine. Calling Start more
// than once has no effect.
func (s *Sweeper) Start(parentCtx context.Context) {
	if s.ctx != nil {
		// already started
		return
	}
	ctx, cancel := context.WithCancel(parentCtx)
	s.ctx = ctx
	s.cancel = cancel

	go s.loop()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	s.log.Debug().Dur("interval", s.interval).Msg("sweeper: started")
	for {
		select {
		case <-s.ctx.Done():
			s.log.Debug().Msg("sweeper: context cancelled, stopping")
			return
		case <-ticker.C:
			if n := s.target.Sweep(); n > 0 {
				s.log.Debug().Int("swept", n).Msg("sweeper: removed terminal jobs")
			}
		}
	}
}

// Stop cancels the sweeper and waits for the loop to finish. It is idempotent.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		// not started
		return
	}
	s.cancel()
	<-s.done
	s.ctx = nil
	s.cancel = nil
	s.done = make(chan struct{})
}
