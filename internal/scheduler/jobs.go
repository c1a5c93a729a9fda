package scheduler

import (
	"context"
	"time"

	"github.com/aristath/regret/internal/modules/snapshots"
	"github.com/aristath/regret/internal/reliability"
	"github.com/rs/zerolog"
)

// RecomputeJob rebuilds every symbol's snapshot series from the journal.
type RecomputeJob struct {
	service *snapshots.Service
	timeout time.Duration
	log     zerolog.Logger
}

// NewRecomputeJob creates the nightly recompute job.
func NewRecomputeJob(service *snapshots.Service, timeout time.Duration, log zerolog.Logger) *RecomputeJob {
	return &RecomputeJob{
		service: service,
		timeout: timeout,
		log:     log.With().Str("job", "nightly_recompute").Logger(),
	}
}

// Name implements Job.
func (j *RecomputeJob) Name() string { return "nightly_recompute" }

// Run implements Job. Per-symbol failures are logged inside the runner;
// only a batch-level failure (journal unreadable) fails the job.
func (j *RecomputeJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	results, err := j.service.RecomputeAll(ctx)
	if err != nil {
		return err
	}

	rows := 0
	for _, res := range results {
		rows += res.Rows
	}
	j.log.Info().Int("symbols", len(results)).Int("rows", rows).Msg("Nightly recompute finished")
	return nil
}

// BackupJob ships a fresh database archive to the object store and
// applies retention.
type BackupJob struct {
	service *reliability.BackupService
	timeout time.Duration
	log     zerolog.Logger
}

// NewBackupJob creates the backup job.
func NewBackupJob(service *reliability.BackupService, timeout time.Duration, log zerolog.Logger) *BackupJob {
	return &BackupJob{
		service: service,
		timeout: timeout,
		log:     log.With().Str("job", "backup").Logger(),
	}
}

// Name implements Job.
func (j *BackupJob) Name() string { return "backup" }

// Run implements Job.
func (j *BackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if err := j.service.CreateAndUpload(ctx); err != nil {
		return err
	}
	if err := j.service.PruneOldBackups(ctx); err != nil {
		j.log.Warn().Err(err).Msg("Backup retention pass failed")
	}
	return nil
}
