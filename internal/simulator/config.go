package simulator

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL     string        // Base URL of the service
	Subjects    int           // Number of simulated subjects
	Rounds      int           // Rounds played per subject
	Targets     int           // Targets spawned per round
	Seed        uint64        // Generator seed; equal seeds give equal sessions
	Workers     int           // Subjects sent concurrently
	Timeout     time.Duration // HTTP request timeout
	Compression string        // "", "gzip" or "zstd"
	Verbose     bool          // Log every verified round
}

// Defaults for a simulation run.
const (
	DefaultBaseURL  = "http://localhost:9080"
	DefaultSubjects = 10
	DefaultRounds   = 3
	DefaultTargets  = 20
	DefaultSeed     = 1
	DefaultTimeout  = 30 * time.Second
)

// DefaultConfig returns the configuration used when no flags are given.
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Subjects: DefaultSubjects,
		Rounds:   DefaultRounds,
		Targets:  DefaultTargets,
		Seed:     DefaultSeed,
		Workers:  2,
		Timeout:  DefaultTimeout,
	}
}

// Stats holds run statistics.
type Stats struct {
	SubjectsGenerated int
	SamplesSent       int64
	AttemptsSent      int64
	InteractionsSent  int64
	BatchesFailed     int64
	ItemsDropped      int64
	RoundsVerified    int
	Mismatches        []string
	StartTime         time.Time
	EndTime           time.Time
	Duration          time.Duration
}
