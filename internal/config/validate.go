package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSampler(); err != nil {
		return err
	}
	if err := c.validateModel(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must not be empty")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir must not be empty")
	}
	return nil
}

func (c *Config) validateSampler() error {
	if c.Sampler.URL == "" {
		return errors.New("sampler.url is required (the posterior sampling engine endpoint)")
	}
	return nil
}

func (c *Config) validateModel() error {
	if c.Model.TargetAccept <= 0 || c.Model.TargetAccept >= 1 {
		return fmt.Errorf("model.target_accept must be in (0, 1), got %v", c.Model.TargetAccept)
	}
	if c.Model.Chains < 1 {
		return fmt.Errorf("model.chains must be at least 1, got %d", c.Model.Chains)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
