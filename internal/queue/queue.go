// Package queue is a Redis-backed transport for backfill jobs. Job state
// lives in a hash per job and is owned here as an explicit tagged state, not
// buried in a queue library's job object; the list and sorted set are just
// dispatch and listing structures around it.
package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zeru/price-oracle/internal/models"
)

const (
	dispatchKey = "backfill:dispatch"
	indexKey    = "backfill:index"
	jobPrefix   = "backfill:job:"
	cancelTTL   = 24 * time.Hour
)

func jobKey(id string) string    { return jobPrefix + id }
func cancelKey(id string) string { return jobPrefix + id + ":cancel" }

type Queue struct {
	client *redis.Client
}

func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// Enqueue registers a new backfill job in waiting state and pushes it onto
// the dispatch list.
func (q *Queue) Enqueue(ctx context.Context, token, network string) (*models.BackfillJob, error) {
	job := &models.BackfillJob{
		ID:        uuid.NewString(),
		Token:     token,
		Network:   network,
		State:     models.JobWaiting,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	fields := map[string]any{
		"token":     job.Token,
		"network":   job.Network,
		"state":     string(job.State),
		"progress":  0,
		"createdAt": job.CreatedAt.Unix(),
	}
	if err := q.client.HSet(ctx, jobKey(job.ID), fields).Err(); err != nil {
		return nil, fmt.Errorf("store job: %w", err)
	}
	if err := q.client.ZAdd(ctx, indexKey, redis.Z{
		Score:  float64(job.CreatedAt.Unix()),
		Member: job.ID,
	}).Err(); err != nil {
		return nil, fmt.Errorf("index job: %w", err)
	}
	if err := q.client.LPush(ctx, dispatchKey, job.ID).Err(); err != nil {
		return nil, fmt.Errorf("dispatch job: %w", err)
	}
	return job, nil
}

// Dequeue blocks up to timeout for the next waiting job and marks it active.
// It returns (nil, nil) when the timeout elapses with nothing to do, and
// silently drops jobs that were cancelled while still waiting.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*models.BackfillJob, error) {
	res, err := q.client.BRPop(ctx, timeout, dispatchKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("pop dispatch: %w", err)
	}

	id := res[1]
	job, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil || job.State != models.JobWaiting {
		return nil, nil
	}

	if err := q.client.HSet(ctx, jobKey(id), "state", string(models.JobActive)).Err(); err != nil {
		return nil, fmt.Errorf("mark active: %w", err)
	}
	job.State = models.JobActive
	return job, nil
}

// Get loads one job by id, or nil if unknown.
func (q *Queue) Get(ctx context.Context, id string) (*models.BackfillJob, error) {
	fields, err := q.client.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("load job: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return parseJob(id, fields), nil
}

// List returns jobs newest-first, paginated from page 1.
func (q *Queue) List(ctx context.Context, page, limit int) ([]models.BackfillJob, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := int64((page - 1) * limit)
	stop := start + int64(limit) - 1

	ids, err := q.client.ZRevRange(ctx, indexKey, start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	jobs := make([]models.BackfillJob, 0, len(ids))
	for _, id := range ids {
		job, err := q.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, *job)
		}
	}
	return jobs, nil
}

// SetProgress records completion percentage for an active job.
func (q *Queue) SetProgress(ctx context.Context, id string, progress int) error {
	return q.client.HSet(ctx, jobKey(id), "progress", progress).Err()
}

// Complete moves a job to its completed terminal state.
func (q *Queue) Complete(ctx context.Context, id string) error {
	return q.finish(ctx, id, models.JobCompleted, "", 100)
}

// Fail moves a job to failed with a reason operators can read from status.
func (q *Queue) Fail(ctx context.Context, id, reason string) error {
	return q.finish(ctx, id, models.JobFailed, reason, -1)
}

// MarkCancelled moves a job to its cancelled terminal state.
func (q *Queue) MarkCancelled(ctx context.Context, id string) error {
	return q.finish(ctx, id, models.JobCancelled, "", -1)
}

func (q *Queue) finish(ctx context.Context, id string, state models.JobState, reason string, progress int) error {
	fields := map[string]any{
		"state":      string(state),
		"finishedOn": time.Now().UTC().Unix(),
	}
	if reason != "" {
		fields["reason"] = reason
	}
	if progress >= 0 {
		fields["progress"] = progress
	}
	if err := q.client.HSet(ctx, jobKey(id), fields).Err(); err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

// RequestCancel asks a non-terminal job to stop. A waiting job is cancelled
// on the spot (Dequeue will drop it); an active job gets a flag the worker
// polls between batches.
func (q *Queue) RequestCancel(ctx context.Context, id string) (*models.BackfillJob, error) {
	job, err := q.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}
	if job.State.Terminal() {
		return job, fmt.Errorf("cannot cancel job in %s state", job.State)
	}

	if err := q.client.Set(ctx, cancelKey(id), "1", cancelTTL).Err(); err != nil {
		return nil, fmt.Errorf("set cancel flag: %w", err)
	}
	if job.State == models.JobWaiting {
		if err := q.MarkCancelled(ctx, id); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// CancelRequested reports whether a cancel flag is set for the job. Errors
// read as "not cancelled" so a Redis blip cannot kill a healthy run.
func (q *Queue) CancelRequested(ctx context.Context, id string) bool {
	n, err := q.client.Exists(ctx, cancelKey(id)).Result()
	return err == nil && n > 0
}

func parseJob(id string, fields map[string]string) *models.BackfillJob {
	job := &models.BackfillJob{
		ID:      id,
		Token:   fields["token"],
		Network: fields["network"],
		State:   models.JobState(fields["state"]),
		Reason:  fields["reason"],
	}
	if v, err := strconv.Atoi(fields["progress"]); err == nil {
		job.Progress = v
	}
	if v, err := strconv.ParseInt(fields["createdAt"], 10, 64); err == nil {
		job.CreatedAt = time.Unix(v, 0).UTC()
	}
	if v, err := strconv.ParseInt(fields["finishedOn"], 10, 64); err == nil {
		t := time.Unix(v, 0).UTC()
		job.FinishedOn = &t
	}
	return job
}
