package feedsim

import "time"

// Defaults for a simulation run.
const (
	DefaultBaseURL  = "http://localhost:9080"
	DefaultTeams    = 36
	DefaultMatches  = 12
	DefaultInterval = 500 * time.Millisecond
	DefaultTimeout  = 10 * time.Second

	teamsPerAlliance = 3
	maxScore         = 120
	verifyAttempts   = 10
	verifyBackoff    = 100 * time.Millisecond
)
