package main

import (
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/users-api/internal/loadrun/runstore"
)

func newHistoryCmd() *cobra.Command {
	var (
		resultsDB string
		limit     int
	)

	openStore := func() (*runstore.Store, error) {
		if resultsDB == "" {
			return nil, errors.New("no results database: set --results-db or LOAD_RESULTS_DB")
		}
		if _, err := os.Stat(resultsDB); err != nil {
			return nil, fmt.Errorf("results database: %w", err)
		}
		return runstore.New(resultsDB)
	}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded load runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tITERATIONS\tVUS MAX\tREQS\tFAILED\tP(95)\tTHRESHOLDS")
			for _, r := range runs {
				status := "pass"
				if !r.ThresholdsPassed {
					status = "FAIL"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%.2f%%\t%.2fms\t%s\n",
					r.ID,
					r.StartedAt.Local().Format(time.DateTime),
					r.Duration().Round(time.Second),
					r.Iterations, r.VUsMax, r.HTTPReqs,
					r.FailedRate*100, r.P95, status)
			}
			return w.Flush()
		},
	}

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			summary, err := store.GetRun(args[0])
			if err != nil {
				return err
			}
			return summary.WriteText(cmd.OutOrStdout())
		},
	}

	cmd.PersistentFlags().StringVar(&resultsDB, "results-db", os.Getenv("LOAD_RESULTS_DB"), "SQLite file runs are recorded in")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to list (0 for all)")
	cmd.AddCommand(show)

	return cmd
}
