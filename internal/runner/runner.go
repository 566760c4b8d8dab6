// Package runner drives one job's pipeline to completion, translating its
// snapshot sequence into durable, observable progress.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/target/analysis-api/internal/archive"
	"github.com/target/analysis-api/internal/core"
	"github.com/target/analysis-api/internal/domain/model"
	"github.com/target/analysis-api/internal/store"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Options groups dependencies for the Runner.
type Options struct {
	Store   *store.Store         // Required
	Factory core.PipelineFactory // Required
	Archive *archive.Builder     // Required
	Root    string               // Required: data root directory
	Logger  *slog.Logger         // Optional
}

// Runner executes one job at a time inside a scheduler worker. It is
// stateless across jobs and safe for concurrent use by multiple workers.
type Runner struct {
	store   *store.Store
	factory core.PipelineFactory
	archive *archive.Builder
	root    string
	logger  *slog.Logger
}

// New constructs a Runner.
func New(opts Options) (*Runner, error) {
	if opts.Store == nil {
		return nil, errors.New("store is required")
	}
	if opts.Factory == nil {
		return nil, errors.New("pipeline factory is required")
	}
	if opts.Archive == nil {
		return nil, errors.New("archive builder is required")
	}
	if opts.Root == "" {
		return nil, errors.New("root directory is required")
	}
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "pipeline_runner")
	}
	return &Runner{
		store:   opts.Store,
		factory: opts.Factory,
		archive: opts.Archive,
		root:    opts.Root,
		logger:  logger,
	}, nil
}

// LiveReportDir returns the live output directory for a subject and date.
func LiveReportDir(root, ticker, tradeDate string) string {
	return filepath.Join(root, "results", ticker, tradeDate, "reports")
}

// Run drives the job's pipeline from creation to its final snapshot. Any
// failure, whether raised by the pipeline or while persisting output, ends
// the job as failed; partial live output already on disk is kept.
func (r *Runner) Run(ctx context.Context, jobID string) {
	job, ok := r.store.Get(jobID)
	if !ok {
		return
	}
	r.store.MarkRunning(jobID)

	pipe, err := r.factory.New(ctx, job.Request)
	if err != nil {
		r.fail(jobID, fmt.Errorf("start pipeline: %w", err))
		return
	}

	ticker := job.Request.Ticker
	tradeDate := job.Request.TradeDate()
	liveDir := LiveReportDir(r.root, ticker, tradeDate)
	if err := os.MkdirAll(liveDir, dirPerm); err != nil {
		r.fail(jobID, fmt.Errorf("create live report dir: %w", err))
		return
	}

	final, err := r.consume(ctx, jobID, pipe, liveDir)
	if err != nil {
		r.fail(jobID, err)
		return
	}
	r.store.UpdateUsage(jobID, pipe.Usage())

	if err := r.finalize(jobID, final, ticker, tradeDate, liveDir); err != nil {
		r.fail(jobID, err)
	}
}

// consume iterates the snapshot sequence, diffing report keys against the
// last-seen content and persisting only changes. Repeated identical
// snapshots are silent: this is a content-equality diff, not a presence
// check.
func (r *Runner) consume(
	ctx context.Context,
	jobID string,
	pipe core.Pipeline,
	liveDir string,
) (model.Snapshot, error) {
	previous := make(map[string]string, len(model.ReportKeys))
	var final model.Snapshot

	for {
		snap, err := pipe.Next(ctx)
		if errors.Is(err, core.ErrPipelineDone) {
			return final, nil
		}
		if err != nil {
			return final, err
		}
		final = snap

		r.store.UpdateUsage(jobID, pipe.Usage())
		if msg := snap.Message; msg != nil && msg.Content != "" {
			r.store.AppendMessage(jobID, msg.Agent, msg.Content)
		}

		for _, key := range model.ReportKeys {
			value := snap.Report(key)
			if strings.TrimSpace(value) == "" || previous[key] == value {
				continue
			}
			previous[key] = value
			fileName := model.ReportFiles[key]
			if err := os.WriteFile(filepath.Join(liveDir, fileName), []byte(value), filePerm); err != nil {
				return final, fmt.Errorf("write report %s: %w", fileName, err)
			}
			r.store.ReportReady(jobID, key, fileName, len(value))
		}
	}
}

// finalize writes the final report set, builds the archive bundle and
// records the completed event plus terminal status.
func (r *Runner) finalize(jobID string, final model.Snapshot, ticker, tradeDate, liveDir string) error {
	for _, key := range model.ReportKeys {
		content := final.Report(key)
		if strings.TrimSpace(content) == "" {
			continue
		}
		fileName := model.ReportFiles[key]
		if err := os.WriteFile(filepath.Join(liveDir, fileName), []byte(content), filePerm); err != nil {
			return fmt.Errorf("write final report %s: %w", fileName, err)
		}
	}

	bundle, err := r.archive.Build(archive.Input{
		Ticker:    ticker,
		TradeDate: tradeDate,
		Final:     final,
		LiveDir:   liveDir,
	})
	if err != nil {
		return fmt.Errorf("build archive: %w", err)
	}

	reports, artifacts, err := listOutputs(liveDir)
	if err != nil {
		return err
	}

	r.store.Complete(jobID, model.CompletedEventData{
		ReportDir:    liveDir,
		Reports:      reports,
		Artifacts:    artifacts,
		ArchiveDir:   bundle.Dir,
		ArchiveFiles: bundle.Files,
		Decision:     final.Report(model.ReportKeyDecision),
	})
	if r.logger != nil {
		r.logger.Info("job run finished", "job_id", jobID, "reports", len(reports), "archive_dir", bundle.Dir)
	}
	return nil
}

func (r *Runner) fail(jobID string, err error) {
	r.store.Fail(jobID, err.Error())
	if r.logger != nil {
		r.logger.Warn("job run failed", "job_id", jobID, "error", err)
	}
}

// listOutputs splits the live directory into report (.md) and artifact
// (.png/.csv) listings, both sorted.
func listOutputs(liveDir string) ([]string, []string, error) {
	entries, err := os.ReadDir(liveDir)
	if err != nil {
		return nil, nil, fmt.Errorf("read live report dir: %w", err)
	}
	reports := []string{}
	artifacts := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.EqualFold(filepath.Ext(name), ".md"):
			reports = append(reports, name)
		case archive.IsArtifactName(name):
			artifacts = append(artifacts, name)
		}
	}
	sort.Strings(reports)
	sort.Strings(artifacts)
	return reports, artifacts, nil
}
