package poller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lr2ise/internal/clock"
	"lr2ise/internal/logging"
	"lr2ise/internal/search"
	"lr2ise/internal/services"
)

// Poll defaults.
const (
	DefaultInterval = 5 * time.Second
	DefaultTimeout  = 300 * time.Second
)

// Fetcher retrieves the current snapshot for a search task.
type Fetcher interface {
	Fetch(ctx context.Context, t search.Task) (*search.Snapshot, error)
}

// SearchFailedError reports a backend-declared terminal failure.
type SearchFailedError struct {
	TaskID string
	Status string
}

func (e *SearchFailedError) Error() string {
	return fmt.Sprintf("search task %s ended with status %q", e.TaskID, e.Status)
}

// Cancelled reports whether the backend cancelled the search rather than failing it.
func (e *SearchFailedError) Cancelled() bool {
	return search.IsCancelled(e.Status)
}

// Is matches services.ErrSearchFailed, or services.ErrSearchCancelled for the
// cancellation variant.
func (e *SearchFailedError) Is(target error) bool {
	if e.Cancelled() {
		return target == services.ErrSearchCancelled
	}
	return target == services.ErrSearchFailed
}

// SearchTimeoutError reports that no terminal status arrived in time.
type SearchTimeoutError struct {
	TaskID     string
	Timeout    time.Duration
	Fetches    int
	LastStatus string
}

func (e *SearchTimeoutError) Error() string {
	return fmt.Sprintf("search task %s did not complete within %v (fetches=%d, last status %q)", e.TaskID, e.Timeout, e.Fetches, e.LastStatus)
}

// Is matches services.ErrTimeout.
func (e *SearchTimeoutError) Is(target error) bool {
	return target == services.ErrTimeout
}

// Poller waits for a search task to reach a terminal status.
type Poller struct {
	fetcher  Fetcher
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Poller.
type Option func(*Poller)

// WithInterval sets the wait between fetches.
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout sets the overall bound on polling.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(p *Poller) {
		if c != nil {
			p.clock = c
		}
	}
}

// WithLogger sets the logger used for status transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// New constructs a Poller.
func New(fetcher Fetcher, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		clock:    clock.Real(),
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "poller")
	return p
}

// Wait fetches the task until its status is terminal. A success label returns
// that snapshot, even with no items. A failure label returns
// *SearchFailedError after that single fetch. Fetch errors are returned
// unchanged. Reaching the timeout returns *SearchTimeoutError.
func (p *Poller) Wait(ctx context.Context, task search.Task) (*search.Snapshot, error) {
	logger := logging.WithContext(ctx, p.logger)
	start := p.clock.Now()
	fetches := 0
	lastStatus := ""

	for p.clock.Now().Sub(start) < p.timeout {
		snapshot, err := p.fetcher.Fetch(ctx, task)
		fetches++
		if err != nil {
			return nil, err
		}

		if snapshot.Status != lastStatus {
			logger.Debug("search status",
				logging.String("status", snapshot.Status),
				logging.Int("items", len(snapshot.Items)),
				logging.Int("fetch", fetches),
			)
			lastStatus = snapshot.Status
		}

		switch search.Classify(snapshot.Status) {
		case search.OutcomeSucceeded:
			logger.Info("search completed",
				logging.String("status", snapshot.Status),
				logging.Int("items", len(snapshot.Items)),
				logging.Int("fetches", fetches),
				logging.Duration("elapsed", p.clock.Now().Sub(start)),
			)
			return snapshot, nil
		case search.OutcomeFailed:
			return nil, &SearchFailedError{TaskID: task.ID, Status: snapshot.Status}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.clock.After(p.interval):
		}
	}

	return nil, &SearchTimeoutError{TaskID: task.ID, Timeout: p.timeout, Fetches: fetches, LastStatus: lastStatus}
}
