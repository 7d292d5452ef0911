// Package worker consumes backfill jobs and populates a token's complete
// daily price history, newest day first, in small concurrent batches spaced
// out to respect provider rate limits.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zeru/price-oracle/internal/external"
	"github.com/zeru/price-oracle/internal/models"
	"github.com/zeru/price-oracle/internal/timeutil"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 3 * time.Second

	// cancelPollInterval bounds how long a cancellation can go unnoticed
	// during the inter-batch delay.
	cancelPollInterval = 1 * time.Second
)

type Store interface {
	Upsert(ctx context.Context, p models.PricePoint) error
}

type Cache interface {
	Invalidate(ctx context.Context, token, network string, ts int64) error
}

type Fetcher interface {
	DailyPrice(ctx context.Context, token, network string, day int64) (float64, bool, error)
}

// CreationSource resolves a token's on-chain creation time.
type CreationSource interface {
	TokenCreationTime(ctx context.Context, token, network string) (int64, error)
}

// JobQueue is the transport the worker consumes from and reports into. Job
// state transitions all go through it.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*models.BackfillJob, error)
	SetProgress(ctx context.Context, id string, progress int) error
	Complete(ctx context.Context, id string) error
	Fail(ctx context.Context, id, reason string) error
	MarkCancelled(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) bool
}

// Notifier announces job outcomes. May be nil.
type Notifier interface {
	Send(msg string)
}

type Options struct {
	BatchSize  int
	BatchDelay time.Duration
	Now        func() time.Time
}

type Worker struct {
	queue   JobQueue
	store   Store
	cache   Cache
	fetcher Fetcher
	chain   CreationSource
	notify  Notifier
	opts    Options

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

func New(queue JobQueue, store Store, cache Cache, fetcher Fetcher, chain CreationSource, notify Notifier, opts Options) *Worker {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.BatchDelay < 0 {
		opts.BatchDelay = DefaultBatchDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Worker{
		queue:   queue,
		store:   store,
		cache:   cache,
		fetcher: fetcher,
		chain:   chain,
		notify:  notify,
		opts:    opts,
	}
}

// Start launches the consumer loop. Safe to call once; Stop shuts it down.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		fmt.Println("[WORKER] Already running")
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.done = make(chan struct{})
	w.mu.Unlock()

	go func() {
		defer close(w.done)
		fmt.Println("[WORKER] Started, waiting for backfill jobs")
		for {
			select {
			case <-w.stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}

			job, err := w.queue.Dequeue(ctx, 1*time.Second)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fmt.Printf("[WORKER] Dequeue failed: %v\n", err)
				continue
			}
			if job == nil {
				continue
			}
			w.runJob(ctx, job)
		}
	}()
}

// Stop signals the consumer loop and waits for the in-flight job to reach a
// terminal state.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	w.running = false
	done := w.done
	w.mu.Unlock()

	<-done
	fmt.Println("[WORKER] Stopped")
}

// ProcessJob drives one job from active to a terminal state. Exported so
// transports other than the consumer loop (and tests) can invoke it.
func (w *Worker) ProcessJob(ctx context.Context, job *models.BackfillJob) {
	w.runJob(ctx, job)
}

func (w *Worker) runJob(ctx context.Context, job *models.BackfillJob) {
	fmt.Printf("[WORKER] Job %s: backfill %s on %s\n", job.ID, job.Token, job.Network)

	creation, err := w.chain.TokenCreationTime(ctx, job.Token, job.Network)
	if err != nil {
		w.fail(ctx, job, fmt.Sprintf("creation discovery failed: %v", err))
		return
	}
	fmt.Printf("[WORKER] Job %s: token created %s\n",
		job.ID, time.Unix(creation, 0).UTC().Format(time.RFC3339))

	buckets := timeutil.DailyBuckets(creation, w.opts.Now().Unix())
	// Newest first: recent days are the ones most likely to be queried soon.
	for i, j := 0, len(buckets)-1; i < j; i, j = i+1, j-1 {
		buckets[i], buckets[j] = buckets[j], buckets[i]
	}

	total := len(buckets)
	processed := 0
	stored := 0
	fmt.Printf("[WORKER] Job %s: %d daily buckets to process\n", job.ID, total)

	for start := 0; start < total; start += w.opts.BatchSize {
		if w.queue.CancelRequested(ctx, job.ID) {
			w.cancel(ctx, job, processed, total)
			return
		}

		end := start + w.opts.BatchSize
		if end > total {
			end = total
		}
		batch := buckets[start:end]

		results, err := w.fetchBatch(ctx, job, batch)
		if err != nil {
			if errors.Is(err, external.ErrQuotaExceeded) {
				w.fail(ctx, job, fmt.Sprintf("provider quota exhausted after %d/%d buckets", processed, total))
			} else {
				w.fail(ctx, job, fmt.Sprintf("batch failed: %v", err))
			}
			return
		}

		for i, day := range batch {
			res := results[i]
			if !res.found {
				continue
			}
			point := models.PricePoint{Token: job.Token, Network: job.Network, Date: day, Price: res.price}
			if err := w.store.Upsert(ctx, point); err != nil {
				w.fail(ctx, job, fmt.Sprintf("persist bucket %d: %v", day, err))
				return
			}
			// The cache only ever holds exact-timestamp keys, so deleting
			// the bucket key is a complete invalidation for this day.
			if err := w.cache.Invalidate(ctx, job.Token, job.Network, day); err != nil {
				fmt.Printf("[WORKER] Job %s: cache invalidation failed for %d: %v\n", job.ID, day, err)
			}
			stored++
		}

		processed += len(batch)
		progress := processed * 100 / total
		if err := w.queue.SetProgress(ctx, job.ID, progress); err != nil {
			fmt.Printf("[WORKER] Job %s: progress update failed: %v\n", job.ID, err)
		}
		fmt.Printf("[WORKER] Job %s: %d/%d buckets (%d%%), %d stored\n",
			job.ID, processed, total, progress, stored)

		if processed < total {
			if cancelled := w.sleep(ctx, job); cancelled {
				w.cancel(ctx, job, processed, total)
				return
			}
		}
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		fmt.Printf("[WORKER] Job %s: completion update failed: %v\n", job.ID, err)
		return
	}
	fmt.Printf("[WORKER] Job %s: completed, stored %d/%d prices\n", job.ID, stored, total)
	if w.notify != nil {
		w.notify.Send(fmt.Sprintf("Backfill completed for %s on %s: %d/%d daily prices stored",
			job.Token, job.Network, stored, total))
	}
}

type fetchResult struct {
	price float64
	found bool
}

// fetchBatch resolves every bucket of the batch concurrently, parallelism
// bounded by the batch size itself. Quota exhaustion from any fetch aborts
// the whole job upstream.
func (w *Worker) fetchBatch(ctx context.Context, job *models.BackfillJob, batch []int64) ([]fetchResult, error) {
	results := make([]fetchResult, len(batch))
	errs := make([]error, len(batch))

	var wg sync.WaitGroup
	for i, day := range batch {
		wg.Add(1)
		go func(i int, day int64) {
			defer wg.Done()
			price, found, err := w.fetcher.DailyPrice(ctx, job.Token, job.Network, day)
			if err != nil {
				errs[i] = err
				return
			}
			results[i] = fetchResult{price: price, found: found}
		}(i, day)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && errors.Is(err, external.ErrQuotaExceeded) {
			return nil, err
		}
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

// sleep waits out the inter-batch delay, polling for cancellation at
// sub-delay granularity. Returns true if the job should stop.
func (w *Worker) sleep(ctx context.Context, job *models.BackfillJob) bool {
	remaining := w.opts.BatchDelay
	for remaining > 0 {
		step := cancelPollInterval
		if step > remaining {
			step = remaining
		}
		select {
		case <-ctx.Done():
			return true
		case <-time.After(step):
		}
		remaining -= step

		if w.queue.CancelRequested(ctx, job.ID) {
			return true
		}
	}
	return false
}

func (w *Worker) fail(ctx context.Context, job *models.BackfillJob, reason string) {
	fmt.Printf("[WORKER] Job %s failed: %s\n", job.ID, reason)
	if err := w.queue.Fail(ctx, job.ID, reason); err != nil {
		fmt.Printf("[WORKER] Job %s: failure update failed: %v\n", job.ID, err)
	}
	if w.notify != nil {
		w.notify.Send(fmt.Sprintf("Backfill failed for %s on %s: %s", job.Token, job.Network, reason))
	}
}

func (w *Worker) cancel(ctx context.Context, job *models.BackfillJob, processed, total int) {
	fmt.Printf("[WORKER] Job %s cancelled after %d/%d buckets\n", job.ID, processed, total)
	if err := w.queue.MarkCancelled(ctx, job.ID); err != nil {
		fmt.Printf("[WORKER] Job %s: cancel update failed: %v\n", job.ID, err)
	}
	if w.notify != nil {
		w.notify.Send(fmt.Sprintf("Backfill cancelled for %s on %s after %d/%d buckets",
			job.Token, job.Network, processed, total))
	}
}
