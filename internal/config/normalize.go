package config

import "strings"

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSampler()
	c.normalizeModel()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeSampler() {
	c.Sampler.URL = strings.TrimRight(strings.TrimSpace(c.Sampler.URL), "/")
	if c.Sampler.TimeoutSeconds <= 0 {
		c.Sampler.TimeoutSeconds = defaultSamplerTimeoutSecs
	}
}

func (c *Config) normalizeModel() {
	if c.Model.Draws <= 0 {
		c.Model.Draws = defaultModelDraws
	}
	if c.Model.Tune <= 0 {
		c.Model.Tune = defaultModelTune
	}
	if c.Model.Chains <= 0 {
		c.Model.Chains = defaultModelChains
	}
	if c.Model.TargetAccept <= 0 {
		c.Model.TargetAccept = defaultModelTargetAccept
	}
	if c.Model.MaxTreeDepth <= 0 {
		c.Model.MaxTreeDepth = defaultModelMaxTreeDepth
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
