package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/okian/matchbar/internal/feedsim"
	"github.com/okian/matchbar/pkg/logger"
)

const defaultRunTimeout = 30 * time.Minute

func main() {
	var (
		baseURL    = flag.String("url", feedsim.DefaultBaseURL, "Base URL of the service")
		events     = flag.String("events", "2020casj", "Comma separated event keys")
		teams      = flag.Int("teams", feedsim.DefaultTeams, "Team pool size per event")
		matches    = flag.Int("matches", feedsim.DefaultMatches, "Qualification matches per event")
		interval   = flag.Duration("interval", feedsim.DefaultInterval, "Delay between pushes")
		timeout    = flag.Duration("timeout", feedsim.DefaultTimeout, "HTTP request timeout")
		seed       = flag.Uint64("seed", 1, "Schedule seed")
		follow     = flag.String("follow", "", "Comma separated teams to follow first")
		duplicates = flag.Bool("duplicates", false, "Re-send every push under the same delivery id")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		feedsim.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		return
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultRunTimeout)
	defer cancel()

	runner, err := feedsim.NewRunner(feedsim.Config{
		BaseURL:    *baseURL,
		EventKeys:  splitList(*events),
		Teams:      *teams,
		Matches:    *matches,
		Interval:   *interval,
		Timeout:    *timeout,
		Seed:       *seed,
		Duplicates: *duplicates,
		Follow:     splitList(*follow),
		Verbose:    *verbose,
	}, logger.Named("feed-sim"))
	if err != nil {
		_, _ = os.Stderr.WriteString("Invalid options: " + err.Error() + "\n")
		return
	}

	if _, err := runner.Run(ctx); err != nil {
		_, _ = os.Stderr.WriteString("Simulation failed: " + err.Error() + "\n")
		return
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
