package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	collyfetch "github.com/Anjan854/filesure-devops-starter/internal/fetch/colly"
	"github.com/Anjan854/filesure-devops-starter/internal/filesure"
	"github.com/Anjan854/filesure-devops-starter/internal/transform"
	"github.com/Anjan854/filesure-devops-starter/internal/worker"
)

// newWorkCmd creates and configures the 'work' subcommand. One invocation
// processes at most one job and exits; the platform scales the number of
// invocations, not the process.
func newWorkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Claims and processes a single job, then exits",
		Long: `Runs the fetch, transform, store pipeline for one job. The job is
named with --job-id or the FILESURE_JOB_ID environment variable; with
neither set, the oldest pending job is picked. Exits zero when the job
succeeds or there is nothing to do, non-zero when the job fails.`,

		RunE: runWorkCommand,
	}
	cmd.Flags().String("job-id", "", "job to process (falls back to FILESURE_JOB_ID, then to the oldest pending job)")
	return cmd
}

func runWorkCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger
	cfg := appInstance.Config

	jobID, err := resolveJobID(cmd)
	if err != nil {
		return err
	}
	if jobID == "" {
		job, err := appInstance.Ledger.NextPending(cmd.Context())
		if errors.Is(err, filesure.ErrNotFound) {
			logger.Info("no pending jobs, exiting")
			return nil
		}
		if err != nil {
			return fmt.Errorf("find pending job: %w", err)
		}
		jobID = job.ID
	}

	fetcher := collyfetch.New(collyfetch.Config{
		UserAgent: cfg.Fetch.UserAgent,
		Timeout:   cfg.FetchTimeout(),
	})
	transformer, err := transform.New(cfg.Transform.Name)
	if err != nil {
		return fmt.Errorf("build transformer: %w", err)
	}

	w := worker.New(
		appInstance.Ledger,
		appInstance.Sink,
		fetcher,
		transformer,
		appInstance.Publisher,
		appInstance.Hasher,
		appInstance.Clock,
		worker.Config{
			BlobPrefix:  cfg.Storage.Prefix,
			ContentType: cfg.Storage.ContentType,
			Topic:       cfg.Publisher.Topic,
		},
		logger.Named("worker"),
	)

	outcome, err := w.Run(cmd.Context(), jobID)
	if outcome == worker.OutcomeFailed {
		logger.Error("job run failed", zap.String("job_id", jobID), zap.Error(err))
		if err != nil {
			return err
		}
		return fmt.Errorf("job %s failed", jobID)
	}
	logger.Info("work command finished",
		zap.String("job_id", jobID),
		zap.String("outcome", outcome.String()),
	)
	return nil
}

func resolveJobID(cmd *cobra.Command) (string, error) {
	jobID, err := cmd.Flags().GetString("job-id")
	if err != nil {
		return "", fmt.Errorf("read job-id flag: %w", err)
	}
	if jobID == "" {
		jobID = os.Getenv("FILESURE_JOB_ID")
	}
	return jobID, nil
}
