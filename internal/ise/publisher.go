package ise

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lr2ise/internal/logging"
	"lr2ise/internal/mapping"
	"lr2ise/internal/services"
)

// MappingStore accepts identity mappings.
type MappingStore interface {
	AddIdentityMapping(ctx context.Context, m mapping.IdentityMapping) error
}

// PublishFailure records why one mapping was not accepted.
type PublishFailure struct {
	Mapping mapping.IdentityMapping
	Err     error
}

func (f *PublishFailure) Error() string {
	return fmt.Sprintf("publish %s: %v", f.Mapping, f.Err)
}

func (f *PublishFailure) Unwrap() error { return f.Err }

// Is matches services.ErrPublish.
func (f *PublishFailure) Is(target error) bool {
	return target == services.ErrPublish
}

// Publisher sends mappings one at a time without retrying.
type Publisher struct {
	store  MappingStore
	logger *slog.Logger
}

// NewPublisher wraps a store.
func NewPublisher(store MappingStore, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logging.NewComponentLogger(logger, "publisher")}
}

// Publish reports whether the store accepted m. Failure detail is logged.
func (p *Publisher) Publish(ctx context.Context, m mapping.IdentityMapping) bool {
	return p.Attempt(ctx, m) == nil
}

// Attempt sends m and returns the failure, or nil when the store accepted it.
// Mappings with a blank field are rejected without contacting the store.
func (p *Publisher) Attempt(ctx context.Context, m mapping.IdentityMapping) *PublishFailure {
	logger := logging.WithContext(ctx, p.logger)

	var failure *PublishFailure
	if err := m.Validate(); err != nil {
		failure = &PublishFailure{Mapping: m, Err: err}
	} else if p.store == nil {
		failure = &PublishFailure{Mapping: m, Err: errors.New("no identity store configured")}
	} else if err := p.store.AddIdentityMapping(ctx, m); err != nil {
		failure = &PublishFailure{Mapping: m, Err: err}
	}

	if failure != nil {
		hint := "check ISE connectivity and passive identity service status"
		var statusErr *StatusError
		if errors.As(failure.Err, &statusErr) && statusErr.Unauthorized() {
			hint = "verify ise.username and ise.password; the token will be re-acquired"
		}
		logging.WarnWithContext(logger, "identity mapping not published", "publish_failed",
			logging.String("user", m.User),
			logging.String("source_ip", m.SourceIP),
			logging.Error(failure),
			logging.String(logging.FieldErrorHint, hint),
			logging.String(logging.FieldImpact, "user will not be mapped until the next run"),
		)
		return failure
	}

	logger.Debug("identity mapping published",
		logging.String("user", m.User),
		logging.String("source_ip", m.SourceIP),
		logging.String("agent", m.Agent),
	)
	return nil
}
