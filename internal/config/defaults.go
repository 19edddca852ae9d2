package config

const (
	defaultDataDir            = "~/.local/share/uplift/data"
	defaultLogDir             = "~/.local/share/uplift/logs"
	defaultAPIBind            = "127.0.0.1:7643"
	defaultSamplerURL         = "http://127.0.0.1:8474"
	defaultSamplerTimeoutSecs = 1800
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultModelDraws         = 1000
	defaultModelTune          = 1000
	defaultModelChains        = 2
	defaultModelTargetAccept  = 0.9
	defaultModelRandomSeed    = 42
	defaultModelMaxTreeDepth  = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Sampler: Sampler{
			URL:            defaultSamplerURL,
			TimeoutSeconds: defaultSamplerTimeoutSecs,
		},
		Model: Model{
			Draws:        defaultModelDraws,
			Tune:         defaultModelTune,
			Chains:       defaultModelChains,
			TargetAccept: defaultModelTargetAccept,
			RandomSeed:   defaultModelRandomSeed,
			MaxTreeDepth: defaultModelMaxTreeDepth,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
