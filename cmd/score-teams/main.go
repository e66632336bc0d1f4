// Command score-teams scores a file of team records in one pass, without
// the HTTP service. Results go to stdout (or -output); logs go to stderr,
// so the two streams can be redirected independently.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/fairshare/internal/batch"
	"github.com/okian/fairshare/pkg/logger"
)

func main() {
	input := flag.String("input", "", "path to a JSON file holding a list of team records (required)")
	output := flag.String("output", "", "path for the JSON results; stdout when omitted")
	floor := flag.Bool("floor", false, "clamp negative member scores to zero")
	summary := flag.Bool("summary", false, "log weight and score spreads for each team")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "score-teams: -input is required")
		flag.Usage()
		os.Exit(2)
	}

	// Logs on stderr so stdout stays a clean result stream.
	if err := logger.Init(logger.WithOutput(os.Stderr)); err != nil {
		fmt.Fprintf(os.Stderr, "score-teams: initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := batch.Run(ctx, batch.Options{
		InputPath:  *input,
		OutputPath: *output,
		Floor:      *floor,
		Summary:    *summary,
	})
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "score-teams: %v\n", err)
		os.Exit(1)
	}
}
