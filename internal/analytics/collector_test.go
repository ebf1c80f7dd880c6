package analytics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gutensearch/gutensearch/pkg/kafka"
)

type capturingPublisher struct {
	mu      sync.Mutex
	batches [][]kafka.Event
}

func (p *capturingPublisher) PublishBatch(_ context.Context, events []kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := make([]kafka.Event, len(events))
	copy(batch, events)
	p.batches = append(p.batches, batch)
	return nil
}

func (p *capturingPublisher) events() []kafka.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var all []kafka.Event
	for _, batch := range p.batches {
		all = append(all, batch...)
	}
	return all
}

func TestCloseFlushesWithoutContextCancellation(t *testing.T) {
	pub := &capturingPublisher{}
	c := NewCollector(pub, 100, time.Hour)
	c.Start(context.Background())

	c.TrackQuery(QueryEvent{Query: "white whale", Returned: 2, TopScore: 0.47})
	c.TrackQuery(QueryEvent{Query: "ghost ship"})

	closed := make(chan struct{})
	go func() {
		c.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while start context was still live")
	}

	evs := pub.events()
	if len(evs) != 2 {
		t.Fatalf("final flush delivered %d events, want 2", len(evs))
	}
	if c.BufferLen() != 0 {
		t.Errorf("buffer length after Close = %d, want 0", c.BufferLen())
	}

	// A second Close must be a no-op, not a panic or a hang.
	c.Close()
}

func TestCloseFlushesOnContextCancellation(t *testing.T) {
	pub := &capturingPublisher{}
	c := NewCollector(pub, 100, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	c.TrackQuery(QueryEvent{Query: "harpoon", Returned: 1, TopScore: 1.2})
	cancel()
	c.Close()

	if got := len(pub.events()); got != 1 {
		t.Fatalf("final flush delivered %d events, want 1", got)
	}
}

func TestTrackQueryDefaultsEventType(t *testing.T) {
	pub := &capturingPublisher{}
	c := NewCollector(pub, 100, time.Hour)
	c.Start(context.Background())

	c.TrackQuery(QueryEvent{Query: "whale", Returned: 3})
	c.TrackQuery(QueryEvent{Query: "zorp", Returned: 0})
	c.Close()

	evs := pub.events()
	if len(evs) != 2 {
		t.Fatalf("got %d events, want 2", len(evs))
	}
	first, ok := evs[0].Value.(QueryEvent)
	if !ok {
		t.Fatalf("event value has type %T, want QueryEvent", evs[0].Value)
	}
	if first.Type != EventQuery {
		t.Errorf("event with results has type %q, want %q", first.Type, EventQuery)
	}
	second := evs[1].Value.(QueryEvent)
	if second.Type != EventZeroResult {
		t.Errorf("event without results has type %q, want %q", second.Type, EventZeroResult)
	}
	if first.Timestamp.IsZero() || second.Timestamp.IsZero() {
		t.Error("tracked events should carry a timestamp")
	}
}

func TestTrackFlushesWhenBatchFills(t *testing.T) {
	pub := &capturingPublisher{}
	c := NewCollector(pub, 2, time.Hour)
	c.Start(context.Background())

	c.TrackQuery(QueryEvent{Query: "a", Returned: 1})
	c.TrackQuery(QueryEvent{Query: "b", Returned: 1})

	deadline := time.Now().Add(2 * time.Second)
	for len(pub.events()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("batch of 2 not flushed, got %d events", len(pub.events()))
		}
		time.Sleep(5 * time.Millisecond)
	}
	c.Close()
}
