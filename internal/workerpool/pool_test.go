package workerpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPoolRunsAllJobs(t *testing.T) {
	p := New(Options{Workers: 4, QueueSize: 100, Log: zerolog.Nop()})
	p.Start()

	var count atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		ok := p.Enqueue(func() {
			defer wg.Done()
			count.Add(1)
		})
		if !ok {
			t.Fatal("enqueue unexpectedly rejected")
		}
	}
	wg.Wait()
	p.Stop()

	if got := count.Load(); got != 50 {
		t.Fatalf("expected 50 jobs run, got %d", got)
	}
}

func TestPoolEnqueueNonBlockingWhenFull(t *testing.T) {
	p := New(Options{Workers: 1, QueueSize: 1, Log: zerolog.Nop()})
	p.Start()
	defer p.Stop()

	block := make(chan struct{})
	if !p.Enqueue(func() { <-block }) {
		t.Fatal("first enqueue should succeed")
	}
	// Give the worker a moment to pick up the blocking job.
	time.Sleep(10 * time.Millisecond)

	if !p.Enqueue(func() {}) {
		t.Fatal("second enqueue should fill the queue slot")
	}
	if p.Enqueue(func() {}) {
		t.Fatal("third enqueue should be rejected, queue full")
	}
	close(block)
}

func TestPoolStats(t *testing.T) {
	p := New(Options{Workers: 0, QueueSize: 10, Log: zerolog.Nop()})
	p.Enqueue(func() {})
	p.Enqueue(func() {})
	stats := p.Stats()
	if stats.Pending != 2 {
		t.Fatalf("expected 2 pending, got %d", stats.Pending)
	}
	if stats.Running != 0 {
		t.Fatalf("expected 0 running, got %d", stats.Running)
	}
	if stats.Waiting != 2 {
		t.Fatalf("expected 2 waiting, got %d", stats.Waiting)
	}
}
