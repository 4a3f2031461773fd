package types

import "time"

// RegisterOptions is the run-wide configuration handed to reporters once,
// together with the list of tests.
type RegisterOptions struct {
	Timeout        time.Duration `json:"timeout"`
	ListingTimeout time.Duration `json:"listingTimeout"`
	SlowThreshold  time.Duration `json:"slowThreshold"`
	GraceTime      time.Duration `json:"graceTime"`
	Attempts       int           `json:"attempts"`
}

const (
	DefaultTimeout        = 2 * time.Second
	DefaultListingTimeout = 10 * time.Second
	DefaultSlowThreshold  = 75 * time.Millisecond
	DefaultGraceTime      = time.Second
	DefaultAttempts       = 1
)

// DefaultRegisterOptions returns the options used when nothing is configured.
func DefaultRegisterOptions() RegisterOptions {
	return RegisterOptions{
		Timeout:        DefaultTimeout,
		ListingTimeout: DefaultListingTimeout,
		SlowThreshold:  DefaultSlowThreshold,
		GraceTime:      DefaultGraceTime,
		Attempts:       DefaultAttempts,
	}
}
