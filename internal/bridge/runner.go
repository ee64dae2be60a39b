package bridge

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"lr2ise/internal/clock"
	"lr2ise/internal/history"
	"lr2ise/internal/ise"
	"lr2ise/internal/logging"
	"lr2ise/internal/mapping"
	"lr2ise/internal/poller"
	"lr2ise/internal/search"
	"lr2ise/internal/services"
)

// Stage names used in wrapped errors and log context.
const (
	StageSubmit    = "submit"
	StagePoll      = "poll"
	StageTransform = "transform"
	StagePublish   = "publish"
)

// Searcher submits queries and fetches task snapshots.
type Searcher interface {
	Submit(ctx context.Context, q search.Query) (search.Task, error)
	Fetch(ctx context.Context, t search.Task) (*search.Snapshot, error)
}

// Recorder persists run summaries.
type Recorder interface {
	Start(ctx context.Context, run history.Run) error
	Finish(ctx context.Context, run history.Run) error
	Prune(ctx context.Context, keep int) (int64, error)
}

// Runner executes the search, transform, and publish pipeline once per Run call.
type Runner struct {
	searcher   Searcher
	publisher  *ise.Publisher
	recorder   Recorder
	keepRuns   int
	buildQuery func(now time.Time) (search.Query, error)
	mapOpts    mapping.Options
	pollOpts   []poller.Option
	dryRun     bool
	clock      clock.Clock
	base       *slog.Logger
	logger     *slog.Logger
	onOutcome  func(Outcome)
	newRunID   func() string
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher sets the publisher that receives each mapping.
func WithPublisher(p *ise.Publisher) Option {
	return func(r *Runner) {
		r.publisher = p
	}
}

// WithRecorder stores a summary of every run and keeps the newest keep rows.
func WithRecorder(rec Recorder, keep int) Option {
	return func(r *Runner) {
		r.recorder = rec
		r.keepRuns = keep
	}
}

// WithQueryBuilder builds the query at the start of each run, so relative
// windows end at that run's start time.
func WithQueryBuilder(fn func(now time.Time) (search.Query, error)) Option {
	return func(r *Runner) {
		if fn != nil {
			r.buildQuery = fn
		}
	}
}

// WithMappingOptions sets the domain, logon marker, and agent fallback.
func WithMappingOptions(opts mapping.Options) Option {
	return func(r *Runner) {
		r.mapOpts = opts
	}
}

// WithPollOptions forwards options to the poller built for each run.
func WithPollOptions(opts ...poller.Option) Option {
	return func(r *Runner) {
		r.pollOpts = append(r.pollOpts, opts...)
	}
}

// WithDryRun transforms records without publishing them.
func WithDryRun(enabled bool) Option {
	return func(r *Runner) {
		r.dryRun = enabled
	}
}

// WithClock overrides the time source for run timestamps and polling.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) {
		if c != nil {
			r.clock = c
		}
	}
}

// WithLogger sets the base logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithOutcomeHandler receives each mapping outcome as soon as it is known.
func WithOutcomeHandler(fn func(Outcome)) Option {
	return func(r *Runner) {
		r.onOutcome = fn
	}
}

// WithRunIDGenerator overrides the run id source.
func WithRunIDGenerator(fn func() string) Option {
	return func(r *Runner) {
		if fn != nil {
			r.newRunID = fn
		}
	}
}

// New constructs a Runner around a search backend.
func New(searcher Searcher, opts ...Option) *Runner {
	r := &Runner{
		searcher:   searcher,
		buildQuery: func(time.Time) (search.Query, error) { return search.NewQuery(), nil },
		mapOpts:    mapping.Options{LogonMarker: mapping.DefaultLogonMarker},
		clock:      clock.Real(),
		newRunID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.base = r.logger
	r.logger = logging.NewComponentLogger(r.base, "runner")
	return r
}

// Run performs one pass. The returned Report is never nil; on a fatal error it
// carries the counts reached before the failure. Publish failures are not
// fatal and appear only in the outcomes.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     r.newRunID(),
		DryRun:    r.dryRun,
		StartedAt: r.clock.Now(),
		Outcomes:  []Outcome{},
	}
	ctx = services.WithRunID(ctx, report.RunID)
	logger := logging.WithContext(ctx, r.logger)

	recorder := r.recorder
	if recorder != nil {
		if err := recorder.Start(ctx, report.historyRun()); err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_start_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run will not appear in lr2ise history"),
			)
			recorder = nil
		}
	}

	err := r.execute(ctx, report)
	report.FinishedAt = r.clock.Now()
	if err != nil {
		report.FailureKind = services.FailureKind(err)
		report.Error = err.Error()
	}
	r.record(ctx, logger, recorder, report)

	if err != nil {
		if !errors.Is(err, context.Canceled) {
			logging.ErrorWithContext(logger, "run failed", "run_failed",
				logging.String("failure_kind", report.FailureKind),
				logging.Error(err),
			)
		}
		return report, err
	}
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("search_status", report.SearchStatus),
		logging.Int("records", report.Counts.Records),
		logging.Int("mappings", report.Counts.Mappings),
		logging.Int("added", report.Counts.Added),
		logging.Int("failed", report.Counts.Failed),
		logging.Duration("elapsed", report.Duration()),
	)
	return report, nil
}

func (r *Runner) execute(ctx context.Context, report *Report) error {
	if r.searcher == nil {
		return services.Wrap(services.ErrConfiguration, StageSubmit, "", "search client unavailable", nil)
	}
	if !r.dryRun && r.publisher == nil {
		return services.Wrap(services.ErrConfiguration, StagePublish, "", "identity publisher unavailable", nil)
	}
	if strings.TrimSpace(r.mapOpts.Domain) == "" {
		return services.Wrap(services.ErrConfiguration, StageTransform, "", "mapping domain is required", nil)
	}

	// Submit
	submitCtx := services.WithStage(ctx, StageSubmit)
	query, err := r.buildQuery(report.StartedAt)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, StageSubmit, "query", "", err)
	}
	task, err := r.searcher.Submit(submitCtx, query)
	if err != nil {
		return services.Wrap(markerFor(err, services.ErrRequest), StageSubmit, "search-task", "", err)
	}
	if !task.Created() {
		msg := "task ID not found in response"
		if task.Message != "" {
			msg += " (" + task.Message + ")"
		}
		return services.Wrap(services.ErrNoTask, StageSubmit, "search-task", msg, nil)
	}
	report.TaskID = task.ID
	ctx = services.WithTaskID(ctx, task.ID)
	logging.WithContext(submitCtx, r.logger).Info("search submitted",
		logging.String(logging.FieldTaskID, task.ID),
		logging.String(logging.FieldEventType, "search_submitted"),
	)

	// Poll
	pollCtx := services.WithStage(ctx, StagePoll)
	pollOpts := append([]poller.Option{poller.WithClock(r.clock), poller.WithLogger(r.base)}, r.pollOpts...)
	snapshot, err := poller.New(r.searcher, pollOpts...).Wait(pollCtx, task)
	if err != nil {
		var failed *poller.SearchFailedError
		if errors.As(err, &failed) {
			report.SearchStatus = failed.Status
		}
		var timedOut *poller.SearchTimeoutError
		if errors.As(err, &timedOut) {
			report.SearchStatus = timedOut.LastStatus
		}
		return services.Wrap(markerFor(err, services.ErrTransient), StagePoll, "search-result", "", err)
	}
	report.SearchStatus = snapshot.Status
	report.Counts.Records = len(snapshot.Items)

	// Transform
	transformCtx := services.WithStage(ctx, StageTransform)
	result := mapping.Transform(snapshot.Items, r.mapOpts)
	report.Counts.Skipped = result.Skipped
	report.Counts.Malformed = len(result.Warnings)
	report.Counts.Mappings = len(result.Mappings)
	report.Warnings = result.Warnings
	transformLogger := logging.WithContext(transformCtx, r.logger)
	for _, w := range result.Warnings {
		transformLogger.Warn("logon record skipped",
			logging.String(logging.FieldEventType, "malformed_record"),
			logging.Int("record_index", w.Index),
			logging.String("field", w.Field),
			logging.String("reason", w.Reason),
			logging.String(logging.FieldErrorHint, "check the search result fields for this log source"),
			logging.String(logging.FieldImpact, "no identity mapping for this record"),
		)
	}

	// Publish
	publishCtx := services.WithStage(ctx, StagePublish)
	for _, m := range result.Mappings {
		if err := publishCtx.Err(); err != nil {
			return services.Wrap(services.ErrPublish, StagePublish, "", "interrupted", err)
		}
		outcome := Outcome{Mapping: m}
		switch {
		case r.dryRun:
			outcome.DryRun = true
		default:
			if failure := r.publisher.Attempt(publishCtx, m); failure != nil {
				outcome.Reason = failure.Err.Error()
				report.Counts.Failed++
			} else {
				outcome.Added = true
				report.Counts.Added++
			}
		}
		report.Outcomes = append(report.Outcomes, outcome)
		if r.onOutcome != nil {
			r.onOutcome(outcome)
		}
	}
	return nil
}

func (r *Runner) record(ctx context.Context, logger *slog.Logger, recorder Recorder, report *Report) {
	if recorder == nil {
		return
	}
	// Persist even when the run was interrupted.
	storeCtx := context.WithoutCancel(ctx)
	if err := recorder.Finish(storeCtx, report.historyRun()); err != nil {
		logging.WarnWithContext(logger, "run history not updated", "history_finish_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "lr2ise history shows this run as running"),
		)
		return
	}
	if r.keepRuns > 0 {
		if removed, err := recorder.Prune(storeCtx, r.keepRuns); err != nil {
			logger.Debug("run history prune failed", logging.Error(err))
		} else if removed > 0 {
			logger.Debug("run history pruned", logging.Int("removed", int(removed)))
		}
	}
}

// markerFor picks the sentinel already carried by err so the wrapped message
// names the real failure class.
func markerFor(err error, fallback error) error {
	for _, marker := range []error{
		services.ErrSearchCancelled,
		services.ErrSearchFailed,
		services.ErrTimeout,
		services.ErrRequest,
	} {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return fallback
}
