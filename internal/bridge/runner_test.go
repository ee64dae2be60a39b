package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"lr2ise/internal/bridge"
	"lr2ise/internal/clock"
	"lr2ise/internal/history"
	"lr2ise/internal/ise"
	"lr2ise/internal/logging"
	"lr2ise/internal/mapping"
	"lr2ise/internal/poller"
	"lr2ise/internal/search"
	"lr2ise/internal/services"
	"lr2ise/internal/testsupport"
)

type stubSearcher struct {
	task      search.Task
	submitErr error
	snapshots []*search.Snapshot
	fetches   int
	queries   []search.Query
}

func (s *stubSearcher) Submit(_ context.Context, q search.Query) (search.Task, error) {
	s.queries = append(s.queries, q)
	return s.task, s.submitErr
}

func (s *stubSearcher) Fetch(_ context.Context, _ search.Task) (*search.Snapshot, error) {
	idx := s.fetches
	s.fetches++
	if idx >= len(s.snapshots) {
		return s.snapshots[len(s.snapshots)-1], nil
	}
	return s.snapshots[idx], nil
}

type recordingStore struct {
	mu    sync.Mutex
	added []mapping.IdentityMapping
	fail  map[string]error
}

func (s *recordingStore) AddIdentityMapping(_ context.Context, m mapping.IdentityMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail[m.User]; err != nil {
		return err
	}
	s.added = append(s.added, m)
	return nil
}

func logonRecord(user, ip string) search.Record {
	return search.Record{
		"description": "User Logon Success",
		"username":    user,
		"sourceIP":    ip,
		"timestamp":   "2024-05-01T12:00:00Z",
		"logSource":   "DC01 MS Windows Event Log",
	}
}

func newRunner(searcher bridge.Searcher, store ise.MappingStore, lines *[]string, opts ...bridge.Option) *bridge.Runner {
	base := []bridge.Option{
		bridge.WithClock(clock.Fake(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))),
		bridge.WithMappingOptions(mapping.Options{Domain: "corp.example.com"}),
		bridge.WithPublisher(ise.NewPublisher(store, logging.NewNop())),
		bridge.WithRunIDGenerator(func() string { return "run-1" }),
		bridge.WithOutcomeHandler(func(o bridge.Outcome) { *lines = append(*lines, o.Line()) }),
	}
	return bridge.New(searcher, append(base, opts...)...)
}

func TestRunPublishesLogonMappings(t *testing.T) {
	searcher := &stubSearcher{
		task: search.Task{ID: "t-1"},
		snapshots: []*search.Snapshot{
			{Status: "Running"},
			{Status: search.StatusPartialResults, Items: []search.Record{
				logonRecord("alice", "10.0.0.5"),
				{"description": "File Access", "username": "bob", "sourceIP": "10.0.0.6"},
			}},
		},
	}
	store := &recordingStore{}
	var lines []string

	report, err := newRunner(searcher, store, &lines).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if searcher.fetches != 2 {
		t.Fatalf("expected 2 fetches, got %d", searcher.fetches)
	}
	if len(store.added) != 1 || store.added[0].User != "alice" || store.added[0].Domain != "corp.example.com" {
		t.Fatalf("unexpected published mappings: %+v", store.added)
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], `added corp.example.com\alice@10.0.0.5`) {
		t.Fatalf("unexpected outcome lines: %q", lines)
	}
	want := history.Counts{Records: 2, Skipped: 1, Mappings: 1, Added: 1}
	if report.Counts != want {
		t.Fatalf("unexpected counts: %+v", report.Counts)
	}
	if report.RunID != "run-1" || report.TaskID != "t-1" || report.SearchStatus != search.StatusPartialResults {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestRunContinuesAfterPublishFailure(t *testing.T) {
	searcher := &stubSearcher{
		task: search.Task{ID: "t-2"},
		snapshots: []*search.Snapshot{{Status: search.StatusAllResults, Items: []search.Record{
			logonRecord("alice", "10.0.0.5"),
			logonRecord("bob", "10.0.0.6"),
			logonRecord("carol", "10.0.0.7"),
		}}},
	}
	store := &recordingStore{fail: map[string]error{"bob": errors.New("ise returned 500")}}
	var lines []string

	report, err := newRunner(searcher, store, &lines).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Counts.Added != 2 || report.Counts.Failed != 1 {
		t.Fatalf("unexpected counts: %+v", report.Counts)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 outcome lines, got %q", lines)
	}
	if !strings.HasPrefix(lines[1], `failed corp.example.com\bob@10.0.0.6: ise returned 500`) {
		t.Fatalf("unexpected failure line: %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "added ") {
		t.Fatalf("expected batch to continue, got %q", lines[2])
	}
}

func TestRunWithoutTaskReportsSubmitStage(t *testing.T) {
	searcher := &stubSearcher{task: search.Task{Message: "invalid query"}}
	var lines []string

	report, err := newRunner(searcher, &recordingStore{}, &lines).Run(context.Background())
	if !errors.Is(err, services.ErrNoTask) {
		t.Fatalf("expected ErrNoTask, got %v", err)
	}
	if !strings.Contains(err.Error(), "submit") || !strings.Contains(err.Error(), "task ID not found in response (invalid query)") {
		t.Fatalf("unexpected error text: %v", err)
	}
	if searcher.fetches != 0 {
		t.Fatalf("expected no fetches, got %d", searcher.fetches)
	}
	if report.FailureKind != services.KindNoTask {
		t.Fatalf("unexpected failure kind: %q", report.FailureKind)
	}
}

func TestRunSubmitErrorIsFatal(t *testing.T) {
	searcher := &stubSearcher{submitErr: &search.RequestError{Op: "search-task", StatusCode: 401}}
	var lines []string

	_, err := newRunner(searcher, &recordingStore{}, &lines).Run(context.Background())
	if !errors.Is(err, services.ErrRequest) {
		t.Fatalf("expected ErrRequest, got %v", err)
	}
	var reqErr *search.RequestError
	if !errors.As(err, &reqErr) || reqErr.StatusCode != 401 {
		t.Fatalf("expected wrapped RequestError, got %v", err)
	}
}

func TestRunSearchFailureNamesPollStage(t *testing.T) {
	searcher := &stubSearcher{
		task:      search.Task{ID: "t-3"},
		snapshots: []*search.Snapshot{{Status: search.StatusCancelled}},
	}
	store := &recordingStore{}
	var lines []string

	report, err := newRunner(searcher, store, &lines).Run(context.Background())
	if !errors.Is(err, services.ErrSearchCancelled) {
		t.Fatalf("expected ErrSearchCancelled, got %v", err)
	}
	if !strings.Contains(err.Error(), "poll") {
		t.Fatalf("expected poll stage in error, got %v", err)
	}
	if report.SearchStatus != search.StatusCancelled || report.FailureKind != services.KindSearchCancelled {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(store.added) != 0 || len(lines) != 0 {
		t.Fatal("expected nothing published after failed search")
	}
}

func TestRunTimesOut(t *testing.T) {
	searcher := &stubSearcher{task: search.Task{ID: "t-4"}, snapshots: []*search.Snapshot{{Status: "Running"}}}
	var lines []string

	_, err := newRunner(searcher, &recordingStore{}, &lines,
		bridge.WithPollOptions(poller.WithInterval(5*time.Second), poller.WithTimeout(30*time.Second)),
	).Run(context.Background())
	var timeoutErr *poller.SearchTimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("expected SearchTimeoutError, got %v", err)
	}
	if searcher.fetches != 6 {
		t.Fatalf("expected 6 fetches, got %d", searcher.fetches)
	}
}

func TestRunDryRunDoesNotPublish(t *testing.T) {
	searcher := &stubSearcher{
		task:      search.Task{ID: "t-5"},
		snapshots: []*search.Snapshot{{Status: search.StatusAllResults, Items: []search.Record{logonRecord("alice", "10.0.0.5")}}},
	}
	var lines []string

	report, err := bridge.New(searcher,
		bridge.WithMappingOptions(mapping.Options{Domain: "corp.example.com"}),
		bridge.WithDryRun(true),
		bridge.WithOutcomeHandler(func(o bridge.Outcome) { lines = append(lines, o.Line()) }),
	).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !report.DryRun || report.Counts.Added != 0 || report.Counts.Mappings != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(lines) != 1 || !strings.HasPrefix(lines[0], "would add ") {
		t.Fatalf("unexpected lines: %q", lines)
	}
}

func TestRunRequiresDomainAndPublisher(t *testing.T) {
	searcher := &stubSearcher{task: search.Task{ID: "t-6"}}

	_, err := bridge.New(searcher, bridge.WithPublisher(ise.NewPublisher(&recordingStore{}, nil))).Run(context.Background())
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "domain") {
		t.Fatalf("expected domain configuration error, got %v", err)
	}

	_, err = bridge.New(searcher, bridge.WithMappingOptions(mapping.Options{Domain: "corp"})).Run(context.Background())
	if !errors.Is(err, services.ErrConfiguration) || !strings.Contains(err.Error(), "publisher") {
		t.Fatalf("expected publisher configuration error, got %v", err)
	}
	if len(searcher.queries) != 0 {
		t.Fatal("expected no submit on configuration error")
	}
}

func TestRunCountsMalformedRecords(t *testing.T) {
	missingUser := logonRecord("", "10.0.0.9")
	delete(missingUser, "username")
	searcher := &stubSearcher{
		task:      search.Task{ID: "t-7"},
		snapshots: []*search.Snapshot{{Status: search.StatusMaxResults, Items: []search.Record{missingUser, logonRecord("alice", "10.0.0.5")}}},
	}
	var lines []string

	report, err := newRunner(searcher, &recordingStore{}, &lines).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Counts.Malformed != 1 || len(report.Warnings) != 1 || report.Warnings[0].Field != "username" {
		t.Fatalf("unexpected malformed accounting: %+v", report)
	}
	if report.Counts.Added != 1 {
		t.Fatalf("expected remaining record published, got %+v", report.Counts)
	}
}

func TestRunRecordsHistory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ok := &stubSearcher{
		task:      search.Task{ID: "t-8"},
		snapshots: []*search.Snapshot{{Status: search.StatusAllResults, Items: []search.Record{logonRecord("alice", "10.0.0.5")}}},
	}
	var lines []string

	if _, err := newRunner(ok, &recordingStore{}, &lines, bridge.WithRecorder(store, 1)).Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	run, err := store.Get(context.Background(), "run-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if run.Outcome != history.OutcomeSucceeded || run.TaskID != "t-8" || run.Added != 1 {
		t.Fatalf("unexpected history row: %+v", run)
	}

	failing := &stubSearcher{task: search.Task{ID: "t-9"}, snapshots: []*search.Snapshot{{Status: search.StatusFailed}}}
	_, err = newRunner(failing, &recordingStore{}, &lines,
		bridge.WithRecorder(store, 1),
		bridge.WithRunIDGenerator(func() string { return "run-2" }),
		bridge.WithClock(clock.Fake(time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC))),
	).Run(context.Background())
	if err == nil {
		t.Fatal("expected failure")
	}
	runs, err := store.Recent(context.Background(), 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-2" {
		t.Fatalf("expected pruned history with newest run, got %+v", runs)
	}
	if runs[0].Outcome != history.OutcomeFailed || runs[0].FailureKind != services.KindSearchFailed || runs[0].SearchStatus != search.StatusFailed {
		t.Fatalf("unexpected failed row: %+v", runs[0])
	}
}

type flakyRecorder struct {
	startErrs []error
	starts    int
	finished  []history.Run
}

func (r *flakyRecorder) Start(_ context.Context, _ history.Run) error {
	idx := r.starts
	r.starts++
	if idx < len(r.startErrs) {
		return r.startErrs[idx]
	}
	return nil
}

func (r *flakyRecorder) Finish(_ context.Context, run history.Run) error {
	r.finished = append(r.finished, run)
	return nil
}

func (r *flakyRecorder) Prune(context.Context, int) (int64, error) { return 0, nil }

func TestRunRecordsHistoryAfterStartFailure(t *testing.T) {
	searcher := &stubSearcher{
		task:      search.Task{ID: "t-10"},
		snapshots: []*search.Snapshot{{Status: search.StatusAllResults}},
	}
	recorder := &flakyRecorder{startErrs: []error{errors.New("database is locked")}}
	ids := []string{"run-1", "run-2"}
	var lines []string
	runner := newRunner(searcher, &recordingStore{}, &lines,
		bridge.WithRecorder(recorder, 0),
		bridge.WithRunIDGenerator(func() string {
			id := ids[0]
			ids = ids[1:]
			return id
		}),
	)

	for i := 0; i < 2; i++ {
		if _, err := runner.Run(context.Background()); err != nil {
			t.Fatalf("Run %d returned error: %v", i+1, err)
		}
	}
	if recorder.starts != 2 {
		t.Fatalf("expected history start attempted on both runs, got %d", recorder.starts)
	}
	if len(recorder.finished) != 1 || recorder.finished[0].ID != "run-2" {
		t.Fatalf("expected only run-2 finished, got %+v", recorder.finished)
	}
}

func TestRunWithoutMappingsEncodesEmptyOutcomes(t *testing.T) {
	searcher := &stubSearcher{
		task:      search.Task{ID: "t-11"},
		snapshots: []*search.Snapshot{{Status: search.StatusAllResults}},
	}
	var lines []string

	report, err := newRunner(searcher, &recordingStore{}, &lines).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if report.Outcomes == nil || len(report.Outcomes) != 0 {
		t.Fatalf("expected empty outcomes, got %#v", report.Outcomes)
	}
	payload, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(payload), `"outcomes":[]`) {
		t.Fatalf("expected empty outcomes array in %s", payload)
	}
}
