package config

import (
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCheck(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateCheck() error {
	if c.Check.Workers < 0 {
		return fmt.Errorf("check.workers must be zero (one per CPU) or positive, got %d", c.Check.Workers)
	}
	if c.Check.Workers > maxWorkers {
		return fmt.Errorf("check.workers must be at most %d, got %d", maxWorkers, c.Check.Workers)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q (want console or json)", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q (want debug, info, warn or error)", c.Logging.Level)
	}
	return nil
}
