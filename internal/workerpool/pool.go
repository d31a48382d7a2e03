// Package workerpool implements the bounded worker pool that the Broker
// Consumer dispatches inbound calls onto (spec §4.1, §5). Generalized from
// a transcription-specific job queue into a pool of arbitrary job functions.
package workerpool

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// Job is one unit of work submitted to the pool.
type Job func()

// Stats reports the current state of the pool's queue.
type Stats struct {
	Pending int
	Running int
	Waiting int // Pending - Running
}

// Options configures a Pool.
type Options struct {
	Workers   int
	QueueSize int
	Log       zerolog.Logger
}

// Pool runs Jobs on a fixed number of worker goroutines, draining a bounded
// channel. Enqueue never blocks: a full queue rejects the job immediately so
// the broker's I/O callback never stalls (spec §5: "the broker client loop
// runs on its own I/O thread; callbacks enqueue work without blocking").
type Pool struct {
	jobs    chan Job
	log     zerolog.Logger
	workers int
	wg      sync.WaitGroup

	running atomic.Int64
}

// New creates a Pool. Call Start to launch its workers.
func New(opts Options) *Pool {
	return &Pool{
		jobs:    make(chan Job, opts.QueueSize),
		log:     opts.Log,
		workers: opts.Workers,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	p.log.Info().Int("workers", p.workers).Int("queue_size", cap(p.jobs)).Msg("worker pool started")
}

// Stop closes the job queue and waits for in-flight jobs to drain. No new
// work is accepted once Stop has been called (spec §5 cancellation model).
func (p *Pool) Stop() {
	close(p.jobs)
	p.wg.Wait()
	p.log.Info().Msg("worker pool stopped")
}

// Enqueue submits a job. It returns false, without blocking, if the queue is full.
func (p *Pool) Enqueue(j Job) bool {
	select {
	case p.jobs <- j:
		return true
	default:
		p.log.Warn().Msg("worker pool queue full, dropping job")
		return false
	}
}

// Stats reports pending/running/waiting counts for backpressure metrics.
func (p *Pool) Stats() Stats {
	running := int(p.running.Load())
	pending := len(p.jobs) + running
	waiting := pending - running
	if waiting < 0 {
		waiting = 0
	}
	return Stats{Pending: pending, Running: running, Waiting: waiting}
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for job := range p.jobs {
		p.running.Add(1)
		func() {
			defer func() {
				p.running.Add(-1)
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("worker pool job panicked")
				}
			}()
			job()
		}()
	}
}
