package run

import "context"

type Repository interface {
	Create(ctx context.Context, r *Run) error
	Update(ctx context.Context, r *Run) error
	Get(ctx context.Context, id int64) (*Run, error)
	List(ctx context.Context, status Status, limit int) ([]Run, error)
	// FailStale marks runs left running by a previous process as failed.
	FailStale(ctx context.Context, reason string) (int64, error)
}
