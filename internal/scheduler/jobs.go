package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lan-dot-party/relkit/internal/api"
	"github.com/lan-dot-party/relkit/internal/nightly"
	"github.com/lan-dot-party/relkit/internal/semver"
	"github.com/lan-dot-party/relkit/internal/storage"
)

// NightlyJob triggers the nightly release workflow on a schedule.
type NightlyJob struct {
	releaser *nightly.Releaser
	storage  storage.Storage
	revision semver.RevisionFunc
	logger   *zap.Logger
	now      func() time.Time
}

// NewNightlyJob creates a new nightly job. store and revision are optional.
// The releaser's trigger must not prompt (AssumeYes).
func NewNightlyJob(releaser *nightly.Releaser, store storage.Storage, revision semver.RevisionFunc, logger *zap.Logger) *NightlyJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NightlyJob{
		releaser: releaser,
		storage:  store,
		revision: revision,
		logger:   logger,
		now:      time.Now,
	}
}

// Run executes the nightly job (implements cron.Job interface).
func (j *NightlyJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := j.RunWithContext(ctx); err != nil {
		j.logger.Error("Scheduled nightly release failed", zap.Error(err))
	}
}

// RunWithContext resolves the tag and triggers the workflow once. A tag that
// the ledger already shows as triggered is skipped, so a stored nightly
// version does not publish the same prerelease every night.
func (j *NightlyJob) RunWithContext(ctx context.Context) error {
	startTime := j.now()
	j.logger.Info("Starting scheduled nightly release")

	tag, err := j.releaser.ResolveTag(ctx, "")
	if err != nil {
		j.finish(ctx, "", nightly.OutcomeFailed, err, startTime)
		return err
	}

	if j.alreadyTriggered(ctx, tag) {
		j.logger.Info("Nightly tag already triggered, skipping", zap.String("tag", tag))
		return nil
	}

	err = j.releaser.Trigger.Run(ctx, tag)
	j.finish(ctx, tag, nightly.OutcomeOf(err), err, startTime)
	if err != nil {
		return err
	}

	j.logger.Info("Scheduled nightly release triggered",
		zap.String("tag", tag),
		zap.Duration("duration", j.now().Sub(startTime)),
	)
	return nil
}

func (j *NightlyJob) alreadyTriggered(ctx context.Context, tag string) bool {
	if j.storage == nil {
		return false
	}
	events, err := j.storage.ListEvents(ctx, storage.EventFilter{Kind: storage.KindNightly, Limit: 50})
	if err != nil {
		j.logger.Warn("Failed to read nightly history", zap.Error(err))
		return false
	}
	for _, e := range events {
		if e.Tag == tag && e.Status == string(nightly.OutcomeTriggered) {
			return true
		}
	}
	return false
}

// finish updates metrics and records the run.
func (j *NightlyJob) finish(ctx context.Context, tag string, outcome nightly.Outcome, runErr error, at time.Time) {
	api.RecordNightly(outcome, at)

	event := storage.NewEvent(storage.KindNightly)
	event.Directive = "scheduled"
	event.Tag = tag
	event.Version = semver.Base(tag)
	event.Status = string(outcome)
	if runErr != nil {
		event.Detail = runErr.Error()
	}
	if j.revision != nil {
		if rev, err := j.revision(ctx); err == nil {
			event.Revision = rev
		}
	}
	storage.Record(ctx, j.storage, event, j.logger)
}
