package registry

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultBasePort is the first port of the local cluster.
	DefaultBasePort = 5000
	// DefaultCount is the number of ports scanned.
	DefaultCount = 8
	// DefaultSettleDelay keeps the refresh flag up a little after the last
	// probe so freshly opened subscriptions have time to deliver.
	DefaultSettleDelay = time.Second

	maxPort = 65535
)

// Config describes the port range to scan.
type Config struct {
	BasePort    int
	Count       int
	SettleDelay time.Duration
	Logger      *zap.Logger
}

// DefaultConfig returns the configuration of a stock local cluster.
func DefaultConfig() Config {
	return Config{
		BasePort:    DefaultBasePort,
		Count:       DefaultCount,
		SettleDelay: DefaultSettleDelay,
	}
}

// Validate checks that the range is non-empty and fits in the port space.
func (c Config) Validate() error {
	var errs []string
	if c.BasePort <= 0 || c.BasePort > maxPort {
		errs = append(errs, "base port must be between 1 and 65535")
	}
	if c.Count <= 0 {
		errs = append(errs, "port count must be positive")
	} else if c.BasePort+c.Count-1 > maxPort {
		errs = append(errs, "port range exceeds 65535")
	}
	if c.SettleDelay < 0 {
		errs = append(errs, "settle delay must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Ports returns every port in the range, ascending.
func (c Config) Ports() []int {
	if c.Count <= 0 {
		return nil
	}
	ports := make([]int, c.Count)
	for i := range ports {
		ports[i] = c.BasePort + i
	}
	return ports
}
