package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chat-image-sync/internal/config"
	"chat-image-sync/internal/domain"
	"chat-image-sync/internal/domain/ports/adapter"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

type captureHandler struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (h *captureHandler) HandleProgress(_ context.Context, ev ProgressEvent) {
	h.mu.Lock()
	h.events = append(h.events, ev)
	h.mu.Unlock()
}

type captureSink struct {
	mu    sync.Mutex
	notes []adapter.Notification
}

func (s *captureSink) Notify(_ context.Context, n adapter.Notification) {
	s.mu.Lock()
	s.notes = append(s.notes, n)
	s.mu.Unlock()
}

func testConn(t *testing.T) (*Connection, *captureHandler, *captureSink) {
	t.Helper()
	cfg := config.TransportConfig{
		URL:            "ws://localhost:0/rt",
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		PingInterval:   time.Minute,
	}
	h := &captureHandler{}
	s := &captureSink{}
	return NewConnection(cfg, h, s, testLogger()), h, s
}

func TestDispatchImageProgress(t *testing.T) {
	c, h, _ := testConn(t)
	frame := `{"type":"image_progress","job_id":"J1","conversation_id":"c1",` +
		`"status":"processing","progress":45,"queue_position":2,"estimated_seconds":12.5}`

	c.dispatch(context.Background(), []byte(frame))

	if len(h.events) != 1 {
		t.Fatalf("events = %d, want 1", len(h.events))
	}
	ev := h.events[0]
	if ev.JobID != "J1" || *ev.Status != "processing" || *ev.Progress != 45 ||
		*ev.QueuePosition != 2 || *ev.EstimatedSeconds != 12.5 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestDispatchNotification(t *testing.T) {
	c, _, s := testConn(t)
	c.dispatch(context.Background(), []byte(`{"type":"notification","title":"hi","body":"there","level":"info"}`))
	if len(s.notes) != 1 || s.notes[0].Title != "hi" {
		t.Fatalf("notes = %+v", s.notes)
	}
}

func TestDispatchToleratesGarbage(t *testing.T) {
	c, h, s := testConn(t)
	for _, raw := range []string{
		`not json at all`,
		`{}`,
		`{"type":"image_progress"}`,              // missing job_id
		`{"type":"image_progress","job_id":123}`, // wrong type
		`{"type":"presence","user":"x"}`,         // unknown frame type
	} {
		c.dispatch(context.Background(), []byte(raw))
	}
	if len(h.events) != 0 || len(s.notes) != 0 {
		t.Fatalf("garbage reached handlers: %d events, %d notes", len(h.events), len(s.notes))
	}
}

func TestSendWhileClosedIsLoggedNoOp(t *testing.T) {
	c, _, _ := testConn(t)
	err := c.Send(map[string]string{"type": "ping"})
	if !errors.Is(err, domain.ErrTransportClosed) {
		t.Fatalf("err = %v, want ErrTransportClosed", err)
	}
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	max := 8 * time.Second
	backoff := time.Second
	var got []time.Duration
	for i := 0; i < 6; i++ {
		got = append(got, backoff)
		backoff = nextBackoff(backoff, max)
	}
	want := []time.Duration{1, 2, 4, 8, 8, 8}
	for i, w := range want {
		if got[i] != w*time.Second {
			t.Fatalf("backoff[%d] = %s, want %ds", i, got[i], w)
		}
	}
}

func TestRunRetriesUntilCancelled(t *testing.T) {
	c, _, _ := testConn(t)
	c.cfg.InitialBackoff = time.Millisecond
	c.cfg.MaxBackoff = 2 * time.Millisecond

	var mu sync.Mutex
	dials := 0
	c.dial = func(ctx context.Context) (*websocket.Conn, error) {
		mu.Lock()
		dials++
		mu.Unlock()
		return nil, errors.New("connection refused")
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on context cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if dials < 2 {
		t.Fatalf("dials = %d, want repeated retries", dials)
	}
	if c.State() != StateClosed {
		t.Fatalf("state = %s, want closed", c.State())
	}
}
