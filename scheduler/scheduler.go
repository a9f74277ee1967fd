// Package scheduler refreshes the cohort results on a daily schedule and
// watches for stale data.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/giygas/bpc-regimens/interfaces"
	"github.com/giygas/bpc-regimens/logging"
	"github.com/go-co-op/gocron"
)

// Compile-time check to ensure Scheduler implements Scheduler interface
var _ interfaces.Scheduler = (*Scheduler)(nil)

// Options configures a Scheduler
type Options struct {
	Cohorts    []string
	RefreshAt  string        // gocron At() format, "06:00;18:00"
	Timeout    time.Duration // Upper bound for one refresh, 0 means none
	StaleAfter time.Duration
}

// Scheduler handles data updates and health monitoring using dependency injection
type Scheduler struct {
	dataStore interfaces.DataStore
	parser    interfaces.Parser
	validator interfaces.DataValidator
	opts      Options
	scheduler *gocron.Scheduler

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a new scheduler instance with injected dependencies
func NewScheduler(dataStore interfaces.DataStore, parser interfaces.Parser, validator interfaces.DataValidator, opts Options) *Scheduler {
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 25 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		dataStore: dataStore,
		parser:    parser,
		validator: validator,
		opts:      opts,
		scheduler: gocron.NewScheduler(time.Local),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start loads the data once, then schedules the refreshes and the health monitor
func (s *Scheduler) Start() error {
	if err := s.updateData(); err != nil {
		logging.Error("Failed to perform initial data load", "error", err)
		return fmt.Errorf("initial data load failed: %w", err)
	}

	_, err := s.scheduler.Every(1).Days().At(s.opts.RefreshAt).Do(func() {
		if err := s.updateData(); err != nil {
			logging.Error("Failed to update data", "error", err)
		}
	})
	if err != nil {
		logging.Error("Failed to schedule updates", "error", err, "refresh_at", s.opts.RefreshAt)
		return fmt.Errorf("failed to schedule updates: %w", err)
	}

	s.scheduler.StartAsync()
	s.startHealthMonitoring(time.Hour)

	return nil
}

// Stop stops the scheduled jobs and cancels a refresh in progress
func (s *Scheduler) Stop() {
	s.cancel()
	s.scheduler.Stop()
}

// updateData runs the pipeline for every cohort and swaps the results in
func (s *Scheduler) updateData() error {
	if !s.dataStore.BeginUpdate() {
		logging.Info("Update already in progress, skipping...")
		return nil
	}
	defer s.dataStore.EndUpdate()

	ctx := s.ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	logging.Info("Starting cohort refresh", "cohorts", s.opts.Cohorts)
	start := time.Now()

	results, err := s.parser.ParseAllCohorts(ctx, s.opts.Cohorts)
	if err != nil {
		return fmt.Errorf("failed to parse cohorts: %w", err)
	}

	if err := s.validator.ValidateDataIntegrity(results); err != nil {
		return fmt.Errorf("refreshed data rejected: %w", err)
	}

	report := s.validator.ReportDataQuality(results)
	if len(report.CohortsWithoutMapping) > 0 {
		logging.Warn("Cohorts without drug mapping", "cohorts", report.CohortsWithoutMapping)
	}
	if len(report.CohortsWithoutRegimens) > 0 {
		logging.Warn("Cohorts without regimens", "cohorts", report.CohortsWithoutRegimens)
	}
	if report.SkippedSegments > 0 {
		logging.Warn("Malformed choices segments skipped", "count", report.SkippedSegments)
	}
	if len(report.UnknownLabels) > 0 {
		logging.Warn("Regimens skipped for unknown drug labels", "per_cohort", report.UnknownLabels)
	}
	if report.Overrides > 0 {
		logging.Debug("Drug codes overridden by the global response set", "count", report.Overrides)
	}

	s.dataStore.UpdateData(results)

	logging.Info("Cohort refresh completed", "duration", time.Since(start).String(), "cohort_count", len(results))
	return nil
}

// startHealthMonitoring warns when the data has not been refreshed for a while
func (s *Scheduler) startHealthMonitoring(every time.Duration) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkStaleness()
			}
		}
	}()
}

func (s *Scheduler) checkStaleness() bool {
	lastUpdate := s.dataStore.GetLastUpdated()
	if time.Since(lastUpdate) > s.opts.StaleAfter {
		logging.Warn("Cohort data has not been refreshed", "last_update", lastUpdate, "stale_after", s.opts.StaleAfter.String())
		return true
	}
	return false
}
