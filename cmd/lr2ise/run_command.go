package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"lr2ise/internal/bridge"
	"lr2ise/internal/config"
	"lr2ise/internal/history"
	"lr2ise/internal/logging"
	"lr2ise/internal/preflight"
)

type runFlags struct {
	domain   string
	dateMin  string
	dateMax  string
	lookback string
	interval int
	timeout  int
	dryRun   bool
	json     bool
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Search for logon events and publish identity mappings to ISE",
		Long: "Submit the configured LogRhythm search, wait for it to finish, and send one\n" +
			"identity mapping per logon record to ISE. Each mapping prints one line:\n" +
			"'added ...' or 'failed ...'. Logs go to stderr and the log file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			cfg := *loaded
			if err := flags.apply(cmd, &cfg); err != nil {
				return err
			}
			return executeRun(cmd, &cfg, flags)
		},
	}

	cmd.Flags().StringVar(&flags.domain, "domain", "", "Domain applied to every mapping (overrides mapping.domain)")
	cmd.Flags().StringVar(&flags.dateMin, "date-min", "", "Search window start (RFC 3339)")
	cmd.Flags().StringVar(&flags.dateMax, "date-max", "", "Search window end (RFC 3339)")
	cmd.Flags().StringVar(&flags.lookback, "lookback", "", "Relative search window ending now, e.g. 15m")
	cmd.Flags().IntVar(&flags.interval, "interval", 0, "Seconds between status polls")
	cmd.Flags().IntVar(&flags.timeout, "timeout", 0, "Seconds to wait for the search before giving up")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Transform records without publishing to ISE")
	cmd.Flags().BoolVar(&flags.json, "json", false, "Print the run report as JSON instead of outcome lines")
	cmd.MarkFlagsMutuallyExclusive("lookback", "date-min")
	cmd.MarkFlagsMutuallyExclusive("lookback", "date-max")
	return cmd
}

func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if domain := strings.TrimSpace(f.domain); domain != "" {
		cfg.Mapping.Domain = domain
	}
	changed := cmd.Flags().Changed
	if changed("date-min") || changed("date-max") {
		cfg.Query.Lookback = ""
		cfg.Query.DateMin = strings.TrimSpace(f.dateMin)
		cfg.Query.DateMax = strings.TrimSpace(f.dateMax)
	}
	if changed("lookback") {
		cfg.Query.DateMin = ""
		cfg.Query.DateMax = ""
		cfg.Query.Lookback = strings.TrimSpace(f.lookback)
	}
	if changed("interval") {
		if f.interval <= 0 {
			return errors.New("--interval must be positive")
		}
		cfg.Poll.IntervalSeconds = f.interval
	}
	if changed("timeout") {
		if f.timeout <= 0 {
			return errors.New("--timeout must be positive")
		}
		cfg.Poll.TimeoutSeconds = f.timeout
	}
	return cfg.Validate()
}

func executeRun(cmd *cobra.Command, cfg *config.Config, flags runFlags) error {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another lr2ise run holds %s", cfg.LockPath())
	}
	defer func() { _ = lock.Unlock() }()

	if expires, ok := preflight.TokenExpiry(cfg.Search.APIToken); ok && !time.Now().Before(expires) {
		logging.WarnWithContext(logger, "search api token has expired", "token_expired",
			logging.String("expired_at", expires.UTC().Format(time.RFC3339)),
			logging.String(logging.FieldErrorHint, "issue a new LogRhythm API token and update LR_API_TOKEN"),
		)
	}

	out := cmd.OutOrStdout()
	opts := []bridge.Option{}
	if !flags.json {
		opts = append(opts, bridge.WithOutcomeHandler(func(o bridge.Outcome) {
			fmt.Fprintln(out, o.Line())
		}))
	}
	if cfg.History.Enabled {
		store, err := history.Open(cfg)
		if err != nil {
			logging.WarnWithContext(logger, "run history unavailable", "history_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this run will not appear in lr2ise history"),
			)
		} else {
			defer store.Close()
			opts = append(opts, bridge.WithRecorder(store, cfg.History.KeepRuns))
		}
	}

	runner, err := bridge.FromConfig(cfg, logger, flags.dryRun, opts...)
	if err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	report, runErr := runner.Run(signalCtx)
	if flags.json {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	} else if runErr == nil && shouldColorize(out) {
		fmt.Fprintln(out, renderRunSummary(report))
	}
	if runErr != nil && errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run %s interrupted", report.RunID)
	}
	return runErr
}

func renderRunSummary(report *bridge.Report) string {
	c := report.Counts
	return renderSummary("Run "+shortRunID(report.RunID), [][2]string{
		{"Search status", report.SearchStatus},
		{"Records", strconv.Itoa(c.Records)},
		{"Skipped (not logon)", strconv.Itoa(c.Skipped)},
		{"Malformed", strconv.Itoa(c.Malformed)},
		{"Mappings", strconv.Itoa(c.Mappings)},
		{"Added", strconv.Itoa(c.Added)},
		{"Failed", strconv.Itoa(c.Failed)},
		{"Dry run", yesNo(report.DryRun)},
		{"Elapsed", report.Duration().Round(time.Millisecond).String()},
	})
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
