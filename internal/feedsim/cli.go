package feedsim

import "os"

// ShowHelp prints usage information for the feed simulator.
func ShowHelp() {
	_, _ = os.Stdout.WriteString(`Matchbar Feed Simulator
=======================

Plays a generated qualification schedule into a running matchbar service
through POST /api/feed/{eventKey}, one snapshot per completed match.

Usage:
  go run ./cmd/feed-sim [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -events string
        Comma separated event keys (default "2020casj")
  -teams int
        Team pool size per event (default 36)
  -matches int
        Qualification matches per event (default 12)
  -interval duration
        Delay between pushes (default 500ms)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed uint
        Schedule seed (default 1)
  -follow string
        Comma separated teams to follow first
  -duplicates
        Re-send every push under the same delivery id
  -verbose
        Enable verbose logging
  -help
        Show this help message

Examples:
  go run ./cmd/feed-sim -events 2020casj,2020cada -interval 2s
  go run ./cmd/feed-sim -follow 254,1678 -duplicates
`)
}
