package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"kyro-backend/internal/models"
)

const (
	queueSize    = 256
	maxRetries   = 3
	writeTimeout = 5 * time.Second
)

// TurnWriter persists one turn. repository.TurnRepo satisfies it.
type TurnWriter interface {
	Insert(ctx context.Context, t *models.Turn) error
}

// Pool drains recorded turns into the ledger on a fixed number of goroutines.
// It implements services.Recorder.
type Pool struct {
	writer      TurnWriter
	queue       chan models.Turn
	workerCount int
	backoff     time.Duration
	wg          sync.WaitGroup
	stopOnce    sync.Once
	mu          sync.RWMutex
	stopped     bool
}

func NewPool(writer TurnWriter, workerCount int) *Pool {
	if workerCount < 1 {
		workerCount = 1
	}
	return &Pool{
		writer:      writer,
		queue:       make(chan models.Turn, queueSize),
		workerCount: workerCount,
		backoff:     time.Second,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	log.Printf("Started %d recorder goroutines", p.workerCount)
}

// Record enqueues a turn without blocking. Turns are dropped when the queue is
// full or the pool has stopped.
func (p *Pool) Record(turn models.Turn) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return
	}

	select {
	case p.queue <- turn:
	default:
		log.Printf("[recorder] queue full, dropping turn for session %s", shortKey(turn.SessionKey))
	}
}

// Stop refuses new turns, drains the queue and waits for the workers.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		close(p.queue)
		p.mu.Unlock()
	})
	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for turn := range p.queue {
		p.write(id, turn)
	}

	log.Printf("Recorder %d shutting down", id)
}

func (p *Pool) write(id int, turn models.Turn) {
	for attempt := 1; attempt <= maxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := p.writer.Insert(ctx, &turn)
		cancel()
		if err == nil {
			return
		}

		if attempt == maxRetries {
			log.Printf("[recorder] worker %d: giving up on turn for session %s: %v", id, shortKey(turn.SessionKey), err)
			return
		}

		log.Printf("[recorder] worker %d: insert failed (attempt %d): %v", id, attempt, err)
		time.Sleep(time.Duration(attempt) * p.backoff)
	}
}

func shortKey(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
