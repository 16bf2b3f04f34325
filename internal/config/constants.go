package config

// Application constants
const (
	AppName    = "csst"
	AppVersion = "1.0.0"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultInputDir    = "data/exports"
	DefaultOutputDir   = "data/processed"
	DefaultLogsDir     = "logs"
	DefaultArchiveDir  = "data/archive"
	DefaultSummaryFile = "summary.csv"

	// DefaultBucketWidth queries each integer degree +/- 0.5
	DefaultBucketWidth = 1.0
	// DefaultSkipHours skips the first two minutes of a run
	DefaultSkipHours = 2.0 / 60
	DefaultWorkers   = 4
)
