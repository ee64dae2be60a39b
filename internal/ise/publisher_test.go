package ise_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"lr2ise/internal/ise"
	"lr2ise/internal/logging"
	"lr2ise/internal/mapping"
	"lr2ise/internal/services"
)

type stubStore struct {
	results []error
	calls   []mapping.IdentityMapping
}

func (s *stubStore) AddIdentityMapping(_ context.Context, m mapping.IdentityMapping) error {
	idx := len(s.calls)
	s.calls = append(s.calls, m)
	if idx < len(s.results) {
		return s.results[idx]
	}
	return nil
}

func TestPublishSuccessReturnsTrue(t *testing.T) {
	store := &stubStore{}
	publisher := ise.NewPublisher(store, logging.NewNop())
	if !publisher.Publish(context.Background(), sampleMapping()) {
		t.Fatal("expected publish to succeed")
	}
	if len(store.calls) != 1 {
		t.Fatalf("expected one store call, got %d", len(store.calls))
	}
}

func TestPublishFailureDoesNotHaltBatch(t *testing.T) {
	store := &stubStore{results: []error{
		&ise.StatusError{Op: "identitymapping", StatusCode: http.StatusBadRequest},
		errors.New("connection refused"),
		nil,
	}}
	publisher := ise.NewPublisher(store, logging.NewNop())

	var outcomes []bool
	for i := 0; i < 3; i++ {
		outcomes = append(outcomes, publisher.Publish(context.Background(), sampleMapping()))
	}
	if outcomes[0] || outcomes[1] || !outcomes[2] {
		t.Fatalf("unexpected outcomes: %v", outcomes)
	}
	if len(store.calls) != 3 {
		t.Fatalf("expected every mapping attempted, got %d", len(store.calls))
	}
}

func TestAttemptReturnsPublishFailure(t *testing.T) {
	cause := errors.New("boom")
	publisher := ise.NewPublisher(&stubStore{results: []error{cause}}, nil)
	failure := publisher.Attempt(context.Background(), sampleMapping())
	if failure == nil {
		t.Fatal("expected failure")
	}
	if !errors.Is(failure, services.ErrPublish) || !errors.Is(failure, cause) {
		t.Fatalf("expected failure to match marker and cause, got %v", failure)
	}
}

func TestPublishSkipsIncompleteMapping(t *testing.T) {
	store := &stubStore{}
	publisher := ise.NewPublisher(store, logging.NewNop())
	m := sampleMapping()
	m.User = ""
	if publisher.Publish(context.Background(), m) {
		t.Fatal("expected incomplete mapping to fail")
	}
	if len(store.calls) != 0 {
		t.Fatal("expected store not to be called")
	}
}

func TestPublishAgainstServerTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client, err := ise.New(url, "svc", "secret")
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	publisher := ise.NewPublisher(client, logging.NewNop())
	if publisher.Publish(context.Background(), sampleMapping()) {
		t.Fatal("expected transport failure to yield false")
	}
}
