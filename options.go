// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package asyncrt

import "time"

// schedulerOptions holds configuration options for Scheduler creation.
type schedulerOptions struct {
	logger           Logger
	metricsEnabled   bool
	shutdownTimeout  time.Duration
	watcherBacklog   int
	strictDebugNames bool
}

// --- Scheduler Options ---

// SchedulerOption configures a Scheduler instance.
type SchedulerOption interface {
	applyScheduler(*schedulerOptions) error
}

// schedulerOptionImpl implements SchedulerOption.
type schedulerOptionImpl struct {
	applySchedulerFunc func(*schedulerOptions) error
}

func (l *schedulerOptionImpl) applyScheduler(opts *schedulerOptions) error {
	return l.applySchedulerFunc(opts)
}

// WithLogger attaches a structured Logger to the scheduler. The default is
// a no-op logger, so attaching one is required to observe anything.
func WithLogger(logger Logger) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithMetrics enables runtime metrics collection on the Scheduler.
// When enabled, metrics can be accessed via Scheduler.Metrics().
// This adds minimal overhead (e.g., record latency after each job, update queue depths).
// For zero-allocation hot paths, disable metrics in production.
func WithMetrics(enabled bool) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.metricsEnabled = enabled
		return nil
	}}
}

// WithShutdownTimeout overrides the default 10s timeout after which the
// shutdown coordinator gives up on at-shutdown hooks and exits with code 1.
func WithShutdownTimeout(d time.Duration) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		if d <= 0 {
			return &RangeError{Message: "shutdown timeout must be positive"}
		}
		opts.shutdownTimeout = d
		return nil
	}}
}

// WithWatcherBacklog sets the maximum number of readiness events drained
// from the fd watcher per poll call.
func WithWatcherBacklog(n int) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		if n <= 0 {
			return &RangeError{Message: "watcher backlog must be positive"}
		}
		opts.watcherBacklog = n
		return nil
	}}
}

// WithStrictDebugNames requires every Fd and Monitor to be created with a
// non-empty debug name: CreateFd and CreateMonitor panic with a
// *TypeError otherwise. Intended for tests that want to catch unnamed
// entities in S-expression dumps (see sexp.go).
func WithStrictDebugNames(enabled bool) SchedulerOption {
	return &schedulerOptionImpl{func(opts *schedulerOptions) error {
		opts.strictDebugNames = enabled
		return nil
	}}
}

// resolveSchedulerOptions applies SchedulerOption instances to schedulerOptions.
func resolveSchedulerOptions(opts []SchedulerOption) (*schedulerOptions, error) {
	cfg := &schedulerOptions{
		logger:          NewNoOpLogger(),
		shutdownTimeout: 10 * time.Second,
		watcherBacklog:  256,
	}
	for _, opt := range opts {
		if opt == nil {
			continue // Skip nil options gracefully
		}
		if err := opt.applyScheduler(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
