// Package exitcodes defines the standard exit codes used by op-suite.
package exitcodes

// Exit code constants used by op-suite
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when all tests pass successfully
// * TestFailure (1): Used when one or more tests fail, the tests could not be listed, or the run was cancelled
// * RuntimeErr (2): Used for configuration and startup errors
// * InternalErr (3): Used for bugs in the runner or in a reporter
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
	InternalErr = 3 // Internal errors
)
