// Package workerpool bounds concurrent work on an ants pool and serializes work that
// shares a key.
package workerpool

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Config sizes the pool. Lanes is the number of stripes keys are spread across.
type Config struct {
	Size  int
	Lanes int
}

// KeyedPool runs functions on a fixed set of goroutines. Two functions submitted with
// the same key never run at the same time and start in submission order per caller.
type KeyedPool struct {
	pool   *ants.Pool
	lanes  []sync.Mutex
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*KeyedPool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("worker pool size must be positive, got %d", cfg.Size)
	}
	if cfg.Lanes <= 0 {
		cfg.Lanes = 1
	}

	pool, err := ants.NewPool(cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &KeyedPool{
		pool:   pool,
		lanes:  make([]sync.Mutex, cfg.Lanes),
		logger: logger,
	}, nil
}

// Run submits fn under key and waits for its result. When ctx ends first Run returns
// ctx.Err(); fn still completes on its worker.
func (p *KeyedPool) Run(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	lane := &p.lanes[p.laneFor(key)]
	resultChan := make(chan error, 1)

	err := p.pool.Submit(func() {
		lane.Lock()
		defer lane.Unlock()

		defer func() {
			if r := recover(); r != nil {
				p.logger.Error("Recovered from panic in worker", "key", key, "panic", r)
				resultChan <- fmt.Errorf("worker panic: %v", r)
			}
		}()

		resultChan <- fn(ctx)
	})
	if err != nil {
		p.logger.Error("Failed to submit task to worker pool", "key", key, "error", err)
		return fmt.Errorf("failed to submit task to worker pool: %w", err)
	}

	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KeyedPool) laneFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(len(p.lanes)))
}

// Shutdown gracefully shuts down the worker pool.
func (p *KeyedPool) Shutdown() {
	p.logger.Info("Shutting down worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of running workers in the pool.
func (p *KeyedPool) Running() int {
	return p.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (p *KeyedPool) Capacity() int {
	return p.pool.Cap()
}
