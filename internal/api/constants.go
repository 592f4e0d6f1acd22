package api

// API limits and constants.
const (
	// MaxImportSize is the maximum accepted library import body (10 MB).
	MaxImportSize = 10 << 20

	// DefaultJobListLimit is how many jobs are listed when no limit is given.
	DefaultJobListLimit = 20
)

