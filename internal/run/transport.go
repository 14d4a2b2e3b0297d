package run

import "github.com/ahmethakanbesel/market-harvester/internal/apperror"

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type GetRunRequest struct {
	ID int64
}

func (r GetRunRequest) Validate() *apperror.AppError {
	if r.ID <= 0 {
		return apperror.New(apperror.BadRequest, "invalid run id")
	}
	return nil
}

type ListRunsRequest struct {
	Status Status
	Limit  int
}

func (r *ListRunsRequest) Validate() *apperror.AppError {
	switch r.Status {
	case "", StatusRunning, StatusCompleted, StatusFailed:
	default:
		return apperror.New(apperror.BadRequest, "invalid run status")
	}
	if r.Limit < 0 || r.Limit > maxListLimit {
		return apperror.New(apperror.BadRequest, "limit must be between 1 and 500")
	}
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}
	return nil
}

// TriggerRequest starts a harvest cycle. MaxRows <= 0 harvests every row.
type TriggerRequest struct {
	Trigger Trigger
	MaxRows int
}

func (r TriggerRequest) Validate() *apperror.AppError {
	switch r.Trigger {
	case TriggerStartup, TriggerSchedule, TriggerAPI:
	default:
		return apperror.New(apperror.BadRequest, "invalid trigger")
	}
	if r.MaxRows < 0 {
		return apperror.New(apperror.BadRequest, "maxRows must not be negative")
	}
	return nil
}
