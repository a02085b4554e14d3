package scheduler

import "errors"

var (
	// ErrSchedulerRunning is returned when registering a job on a started scheduler
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrDuplicateJob is returned when a job name is registered twice
	ErrDuplicateJob = errors.New("job already registered")

	// ErrJobNotFound is returned when a job is not found
	ErrJobNotFound = errors.New("job not found")
)
