package bridge

import (
	"fmt"
	"log/slog"
	"time"

	"lr2ise/internal/config"
	"lr2ise/internal/ise"
	"lr2ise/internal/mapping"
	"lr2ise/internal/poller"
	"lr2ise/internal/search"
	"lr2ise/internal/services"
)

// BuildQuery translates the query section into a search query. A lookback
// window is resolved to an absolute range ending at now.
func BuildQuery(cfg *config.Config, now time.Time) (search.Query, error) {
	opts := []search.QueryOption{
		search.WithMaxMessages(cfg.Query.MaxMessages),
		search.WithQueryTimeout(cfg.Query.QueryTimeout),
		search.WithSearchMode(search.SearchMode(cfg.Query.SearchMode)),
		search.WithLogSources(cfg.Query.LogSources...),
		search.WithLogSourceIDs(cfg.Query.LogSourceIDs...),
		search.WithFilter(cfg.Query.Filter),
		search.WithEventManager(cfg.Query.EventManager),
	}

	lookback, err := cfg.LookbackDuration()
	if err != nil {
		return search.Query{}, services.Wrap(services.ErrConfiguration, "query", "lookback", "", err)
	}
	switch {
	case lookback > 0:
		opts = append(opts, search.WithDateRange(now.Add(-lookback), now))
	case cfg.Query.DateMin != "" || cfg.Query.DateMax != "":
		from, err := parseBound(cfg.Query.DateMin)
		if err != nil {
			return search.Query{}, services.Wrap(services.ErrConfiguration, "query", "date_min", "", err)
		}
		to, err := parseBound(cfg.Query.DateMax)
		if err != nil {
			return search.Query{}, services.Wrap(services.ErrConfiguration, "query", "date_max", "", err)
		}
		opts = append(opts, search.WithDateRange(from, to))
	}
	return search.NewQuery(opts...), nil
}

func parseBound(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, value)
}

// FromConfig builds a Runner with clients for both backends. A dry run does
// not require ISE settings. Extra options are applied last.
func FromConfig(cfg *config.Config, logger *slog.Logger, dryRun bool, opts ...Option) (*Runner, error) {
	if err := cfg.RequireSearch(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "search", "", err)
	}
	if err := cfg.RequireDomain(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "mapping", "", err)
	}

	searchClient, err := search.New(cfg.Search.BaseURL, cfg.Search.APIToken,
		search.WithRequestTimeout(time.Duration(cfg.Search.RequestTimeout)*time.Second))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "config", "search", "", err)
	}

	// Fail fast on a bad window; each run rebuilds the query at its own start time.
	if _, err := BuildQuery(cfg, time.Now()); err != nil {
		return nil, err
	}

	base := []Option{
		WithLogger(logger),
		WithQueryBuilder(func(now time.Time) (search.Query, error) {
			return BuildQuery(cfg, now)
		}),
		WithDryRun(dryRun),
		WithMappingOptions(mapping.Options{
			Domain:        cfg.Mapping.Domain,
			LogonMarker:   cfg.Mapping.LogonMarker,
			AgentFallback: cfg.Mapping.AgentFallback,
		}),
		WithPollOptions(
			poller.WithInterval(time.Duration(cfg.Poll.IntervalSeconds)*time.Second),
			poller.WithTimeout(time.Duration(cfg.Poll.TimeoutSeconds)*time.Second),
		),
	}

	if !dryRun {
		if err := cfg.RequireISE(); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "config", "ise", "", err)
		}
		iseClient, err := ise.New(cfg.ISE.URL, cfg.ISE.Username, cfg.ISE.Password,
			ise.WithRequestTimeout(time.Duration(cfg.ISE.RequestTimeout)*time.Second))
		if err != nil {
			return nil, fmt.Errorf("create ise client: %w", err)
		}
		base = append(base, WithPublisher(ise.NewPublisher(iseClient, logger)))
	}

	return New(searchClient, append(base, opts...)...), nil
}
