// userload drives staged virtual-user traffic against the users API and
// reports per-endpoint latency, failure rates, checks and thresholds.
//
//	go run ./cmd/userload run --config=config/load.yaml
//	go run ./cmd/userload history --results-db=runs.db
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aanand-mishra/users-api/internal/logging"
)

const version = "1.0.0"

// exitThresholds is the exit code when --fail-on-thresholds is set and a
// threshold failed, matching what common load tools use.
const exitThresholds = 99

var errThresholdsFailed = errors.New("one or more thresholds failed")

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if errors.Is(err, errThresholdsFailed) {
			os.Exit(exitThresholds)
		}
		os.Exit(1)
	}
}

type rootOptions struct {
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "userload",
		Short:         "Load generator for the users API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "Log output format: text or json")

	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newHistoryCmd())
	return cmd
}

// logger writes to w so stdout stays free for the report.
func (o *rootOptions) logger(w io.Writer) (*slog.Logger, error) {
	switch o.logFormat {
	case "text":
		return logging.New(w, "dev"), nil
	case "json":
		return logging.New(w, "prod"), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want text or json)", o.logFormat)
	}
}
