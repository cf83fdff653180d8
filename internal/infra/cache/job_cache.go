package cache

import (
	"sync"
	"time"

	"chat-image-sync/internal/domain/model"
	"chat-image-sync/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// JobCache owns all local job records. Mutation goes exclusively through
// Upsert/Remove/Sweep; everything else gets copies.
//
// The map is copy-on-write: every mutation builds a fresh map and swaps it
// in, and subscriber callbacks run after the swap with no lock held. A
// callback may therefore re-enter the cache (read or write) without deadlock
// and without observing a half-applied mutation.
type JobCache struct {
	mu      sync.Mutex
	jobs    map[string]*model.Job
	subs    map[int]func()
	nextSub int
	maxAge  time.Duration
	log     *zerolog.Logger
}

func NewJobCache(terminalMaxAge time.Duration, logger *zerolog.Logger) *JobCache {
	if terminalMaxAge <= 0 {
		terminalMaxAge = 15 * time.Second
	}
	return &JobCache{
		jobs:   map[string]*model.Job{},
		subs:   map[int]func(){},
		maxAge: terminalMaxAge,
		log:    logger,
	}
}

// Upsert merges the patch into the record for p.ID, creating a fresh
// queued/0 record when the id is unknown. First-event-creates is deliberate:
// a progress frame may beat the send response that introduces the job.
// Returns a copy of the resulting record.
func (c *JobCache) Upsert(p model.JobPatch) *model.Job {
	if p.ID == "" {
		c.log.Warn().Msg("job cache: upsert with empty id ignored")
		return nil
	}

	c.mu.Lock()
	next := make(map[string]*model.Job, len(c.jobs)+1)
	for k, v := range c.jobs {
		next[k] = v
	}
	var job model.Job
	if cur, ok := next[p.ID]; ok {
		job = *cur
	} else {
		job = *model.NewJob(p.ID)
	}
	job.Merge(p)
	next[p.ID] = &job
	c.jobs = next
	c.mu.Unlock()

	c.notify()
	out := job
	return &out
}

// Get returns a copy of the record, or nil when unknown.
func (c *JobCache) Get(id string) *model.Job {
	c.mu.Lock()
	j, ok := c.jobs[id]
	c.mu.Unlock()
	if !ok {
		return nil
	}
	out := *j
	return &out
}

// List returns copies of all records in unspecified order.
func (c *JobCache) List() []*model.Job {
	c.mu.Lock()
	snapshot := c.jobs
	c.mu.Unlock()
	out := make([]*model.Job, 0, len(snapshot))
	for _, j := range snapshot {
		cp := *j
		out = append(out, &cp)
	}
	return out
}

// ListActive returns copies of jobs that are not terminal.
func (c *JobCache) ListActive() []*model.Job {
	all := c.List()
	out := all[:0]
	for _, j := range all {
		if j.Active() {
			out = append(out, j)
		}
	}
	return out
}

// ActiveCount counts non-terminal jobs.
func (c *JobCache) ActiveCount() int {
	c.mu.Lock()
	snapshot := c.jobs
	c.mu.Unlock()
	n := 0
	for _, j := range snapshot {
		if j.Active() {
			n++
		}
	}
	return n
}

// Remove drops the record if present.
func (c *JobCache) Remove(id string) {
	c.mu.Lock()
	if _, ok := c.jobs[id]; !ok {
		c.mu.Unlock()
		return
	}
	next := make(map[string]*model.Job, len(c.jobs))
	for k, v := range c.jobs {
		if k != id {
			next[k] = v
		}
	}
	c.jobs = next
	c.mu.Unlock()

	c.notify()
}

// Sweep removes terminal jobs older than the configured max age. Idempotent;
// intended to run on a fixed interval.
func (c *JobCache) Sweep() int {
	cutoff := time.Now().Add(-c.maxAge)

	c.mu.Lock()
	var stale []string
	for id, j := range c.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		c.mu.Unlock()
		return 0
	}
	next := make(map[string]*model.Job, len(c.jobs)-len(stale))
	for k, v := range c.jobs {
		next[k] = v
	}
	for _, id := range stale {
		delete(next, id)
	}
	c.jobs = next
	c.mu.Unlock()

	c.log.Debug().Int("swept", len(stale)).Msg("job cache: swept terminal jobs")
	c.notify()
	return len(stale)
}

// Subscribe registers a callback invoked synchronously after every mutation.
// No payload is passed; subscribers re-read state. The returned func
// unregisters.
func (c *JobCache) Subscribe(fn func()) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *JobCache) notify() {
	c.mu.Lock()
	fns := make([]func(), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	active := 0
	for _, j := range c.jobs {
		if j.Active() {
			active++
		}
	}
	c.mu.Unlock()

	metrics.SetActiveJobs(active)
	for _, fn := range fns {
		fn()
	}
}
