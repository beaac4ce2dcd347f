package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/users-api/internal/loadrun"
	"github.com/aanand-mishra/users-api/internal/loadrun/runstore"
)

type runOptions struct {
	configPath       string
	baseURL          string
	summaryExport    string
	resultsDB        string
	failOnThresholds bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the load profile against the users API",
		Long: `Runs setup, drives virtual users through every stage of the profile,
runs teardown and prints a summary.

The profile is read from --config (or CONFIG_PATH) and the environment.
With neither, the built-in profile ramps to 10 VUs over 30s, holds for 1m
and ramps down over 30s against http://localhost:3000.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", os.Getenv("CONFIG_PATH"), "Path to the load profile YAML")
	f.StringVar(&opts.baseURL, "base-url", "", "Base URL of the users API (overrides BASE_URL and the profile)")
	f.StringVar(&opts.summaryExport, "summary-export", "", "Write the summary to this file (.json, .yaml or .yml)")
	f.StringVar(&opts.resultsDB, "results-db", "", "SQLite file to record the run in (overrides LOAD_RESULTS_DB)")
	f.BoolVar(&opts.failOnThresholds, "fail-on-thresholds", false, "Exit non-zero when a threshold fails")

	return cmd
}

func runLoad(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	log, err := root.logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	p, err := loadrun.LoadProfile(opts.configPath)
	if err != nil {
		return err
	}
	if opts.baseURL != "" {
		p.BaseURL = opts.baseURL
	}
	if opts.resultsDB != "" {
		p.ResultsDB = opts.resultsDB
	}
	if err := p.Validate(); err != nil {
		return err
	}

	var store *runstore.Store
	if p.ResultsDB != "" {
		store, err = runstore.New(p.ResultsDB)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := loadrun.NewSink()
	client := loadrun.NewClient(p.BaseURL, p.RequestTimeout, sink)
	runner := loadrun.NewRunner(p, loadrun.NewUsersScenario(p, client, sink), sink, log)

	summary, err := runner.Run(ctx)
	if summary == nil {
		return err
	}
	if errors.Is(err, context.Canceled) {
		log.Warn("run interrupted, reporting partial results")
	} else if err != nil {
		return err
	}

	if err := summary.WriteText(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}

	if opts.summaryExport != "" {
		if err := summary.Export(opts.summaryExport); err != nil {
			return err
		}
		log.Info("summary exported", slog.String("path", opts.summaryExport))
	}

	if store != nil {
		if err := store.SaveRun(summary); err != nil {
			return err
		}
		log.Info("run recorded",
			slog.String("run_id", summary.RunID),
			slog.String("db", p.ResultsDB))
	}

	if opts.failOnThresholds && !summary.ThresholdsPassed() {
		return errThresholdsFailed
	}
	return nil
}
