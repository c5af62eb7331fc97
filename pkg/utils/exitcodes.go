package utils

const (
	// standard exit codes
	ExitCodeSuccess = iota
	ExitCodeError   = 1

	// custom exit codes
	ExitCodeInvalidConfig       = 100
	ExitCodeUnsupportedPlatform = 102
)
