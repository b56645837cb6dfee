package models

import "time"

// Configuration is the process-level configuration read from the config
// file, USEINTEST_* environment variables and command line flags.
type Configuration struct {
	Debug        bool          `mapstructure:"debug"`
	LogDir       string        `mapstructure:"log_dir"`       // optional rotating log file directory
	StartTimeout time.Duration `mapstructure:"start_timeout"` // overrides the flavor's timeout when > 0
	MaxAttempts  int           `mapstructure:"max_attempts"`  // overrides the flavor's attempts when > 0
	StopTimeout  time.Duration `mapstructure:"stop_timeout"`  // graceful container stop timeout
	FlavorsFile  string        `mapstructure:"flavors_file"`  // optional extra flavor definitions (YAML)
	MetricsAddr  string        `mapstructure:"metrics_addr"`  // serve /metrics on this address when set
}
