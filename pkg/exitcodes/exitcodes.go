// Package exitcodes defines the process exit codes used by the CLI.
package exitcodes

const (
	// Success indicates the run completed and the report was parsed.
	Success = 0
	// RunError indicates the run finished with a run-error or skipped
	// status: validation failed, the engine exited non-zero, or the
	// report could not be parsed.
	RunError = 1
	// RuntimeErr indicates a failure outside the run itself, such as
	// an unreadable configuration file.
	RuntimeErr = 2
)
