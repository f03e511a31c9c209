package challenger

import (
	"fmt"
	"time"
)

// Config mirrors internal/provider's Config shape: a plain struct with a
// DefaultConfig constructor and a Validate method. The challenge expiry
// period itself is Contract state, not configured here -- the Contract is
// authoritative for challenge lifecycle.
type Config struct {
	SampleInterval time.Duration
	SweepInterval  time.Duration
	RPCTimeout     time.Duration
}

// DefaultConfig throttles to one challenge per tick and sweeps for expired
// challenges on a separate, slower cadence.
func DefaultConfig() Config {
	return Config{
		SampleInterval: 30 * time.Second,
		SweepInterval:  60 * time.Second,
		RPCTimeout:     30 * time.Second,
	}
}

func (c Config) Validate() error {
	if c.SampleInterval <= 0 {
		return fmt.Errorf("challenger: SampleInterval must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("challenger: SweepInterval must be positive")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("challenger: RPCTimeout must be positive")
	}
	return nil
}
