// Package feedsim drives a running matchbar service with a simulated
// qualification schedule pushed through the feed ingest endpoint.
package feedsim

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	EventKeys  []string      // Events to simulate concurrently
	Teams      int           // Size of the team pool per event
	Matches    int           // Qualification matches per event
	Interval   time.Duration // Delay between pushes for one event
	Timeout    time.Duration // HTTP request timeout
	Seed       uint64        // Schedule and score seed
	Duplicates bool          // Re-send every push under the same delivery id
	Follow     []string      // Teams to follow before the run
	Verbose    bool          // Enable verbose logging
}

// Stats holds run statistics.
type Stats struct {
	PushesSent     int64
	PushesAccepted int64
	PushesFailed   int64
	Duplicates     int64
	StartTime      time.Time
	EndTime        time.Time
	Duration       time.Duration
}
