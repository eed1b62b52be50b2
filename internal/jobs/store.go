package jobs

import "context"

// Store persists job rows so the queue survives restarts. The checkpoint
// layer implements it alongside the per-unit result store.
type Store interface {
	LoadJobs(ctx context.Context) ([]*Job, error)
	UpsertJob(ctx context.Context, job *Job) error
	DeleteJob(ctx context.Context, jobID string) error
	// DeleteJobData removes the auxiliary data (unit checkpoints) for a job.
	DeleteJobData(ctx context.Context, jobID string) error
}
