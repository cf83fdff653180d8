package cache

import (
	"testing"
	"time"

	"chat-image-sync/internal/domain/model"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestUpsertCreatesUnknownID(t *testing.T) {
	c := NewJobCache(time.Minute, testLogger())
	job := c.Upsert(model.JobPatch{ID: "j1", Progress: model.IntPtr(10)})
	if job == nil {
		t.Fatal("upsert returned nil")
	}
	if job.Status != model.JobStatusQueued {
		t.Fatalf("new job status = %s, want queued", job.Status)
	}
	if job.Progress != 10 {
		t.Fatalf("progress = %d", job.Progress)
	}
	if c.Get("j1") == nil {
		t.Fatal("job not stored")
	}
}

func TestUpsertIsIdempotent(t *testing.T) {
	c := NewJobCache(time.Minute, testLogger())
	patch := model.JobPatch{
		ID:       "j1",
		Status:   model.StatusPtr(model.JobStatusProcessing),
		Progress: model.IntPtr(45),
	}
	c.Upsert(patch)
	first := c.Get("j1")
	c.Upsert(patch)
	second := c.Get("j1")

	if first.Status != second.Status || first.Progress != second.Progress {
		t.Fatalf("duplicate upsert changed state: %+v vs %+v", first, second)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c := NewJobCache(time.Minute, testLogger())
	c.Upsert(model.JobPatch{ID: "j1"})
	got := c.Get("j1")
	got.Progress = 99
	if c.Get("j1").Progress == 99 {
		t.Fatal("mutating a Get result leaked into the cache")
	}
}

func TestSubscribeNotifiesAfterEveryMutation(t *testing.T) {
	c := NewJobCache(time.Minute, testLogger())
	calls := 0
	unsub := c.Subscribe(func() { calls++ })

	c.Upsert(model.JobPatch{ID: "j1"})
	c.Upsert(model.JobPatch{ID: "j1", Progress: model.IntPtr(5)})
	c.Remove("j1")
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}

	unsub()
	c.Upsert(model.JobPatch{ID: "j2"})
	if calls != 3 {
		t.Fatalf("callback fired after unsubscribe, calls = %d", calls)
	}
}

func TestSubscriberMayReenterCache(t *testing.T) {
	c := NewJobCache(time.Minute, testLogger())
	var observed []model.JobStatus
	reentered := false
	c.Subscribe(func() {
		if j := c.Get("j1"); j != nil {
			observed = append(observed, j.Status)
		}
		// First notification writes back into the cache; must not deadlock
		// or corrupt state.
		if !reentered {
			reentered = true
			c.Upsert(model.JobPatch{ID: "j1", Status: model.StatusPtr(model.JobStatusProcessing)})
		}
	})

	c.Upsert(model.JobPatch{ID: "j1"})

	if j := c.Get("j1"); j == nil || j.Status != model.JobStatusProcessing {
		t.Fatalf("reentrant upsert lost: %+v", j)
	}
	if len(observed) < 2 {
		t.Fatalf("observed %d notifications, want at least 2", len(observed))
	}
}

func TestActiveCountExcludesTerminal(t *testing.T) {
	c := NewJobCache(time.Minute, testLogger())
	c.Upsert(model.JobPatch{ID: "j1", Status: model.StatusPtr(model.JobStatusProcessing)})
	c.Upsert(model.JobPatch{ID: "j2"})
	c.Upsert(model.JobPatch{ID: "j3", Status: model.StatusPtr(model.JobStatusComplete)})

	if n := c.ActiveCount(); n != 2 {
		t.Fatalf("active count = %d, want 2", n)
	}
	if got := len(c.ListActive()); got != 2 {
		t.Fatalf("ListActive len = %d, want 2", got)
	}
	if got := len(c.List()); got != 3 {
		t.Fatalf("List len = %d, want 3", got)
	}
}

func TestSweepRemovesOldTerminalJobsOnly(t *testing.T) {
	c := NewJobCache(10*time.Millisecond, testLogger())
	c.Upsert(model.JobPatch{ID: "done", Status: model.StatusPtr(model.JobStatusComplete)})
	c.Upsert(model.JobPatch{ID: "live", Status: model.StatusPtr(model.JobStatusProcessing)})

	time.Sleep(30 * time.Millisecond)
	if n := c.Sweep(); n != 1 {
		t.Fatalf("swept %d, want 1", n)
	}
	if c.Get("done") != nil {
		t.Fatal("terminal job survived sweep")
	}
	if c.Get("live") == nil {
		t.Fatal("active job was swept")
	}
	// Idempotent.
	if n := c.Sweep(); n != 0 {
		t.Fatalf("second sweep removed %d", n)
	}
}

func TestProgressBoundsAlwaysHold(t *testing.T) {
	c := NewJobCache(time.Minute, testLogger())
	for _, p := range []int{-10, 0, 50, 150, 100} {
		c.Upsert(model.JobPatch{ID: "j1", Progress: model.IntPtr(p)})
		j := c.Get("j1")
		if j.Progress < 0 || j.Progress > 100 {
			t.Fatalf("progress out of bounds after %d: %d", p, j.Progress)
		}
	}
}
