package main

// Exit codes used by all pubvec commands.
const (
	ExitSuccess     = 0 // Success
	ExitError       = 1 // General error (invalid arguments, runtime failure)
	ExitConfigError = 2 // Configuration error (invalid config file, missing paths)
	ExitDataError   = 3 // Data error (corrupt ledger, malformed input)
	ExitUnavailable = 4 // A required backing service is not reachable
)
