// Package cmd implements the useintest command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ezenkico/useintest/logger"
	"github.com/ezenkico/useintest/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "USEINTEST"
	configFileName = ".useintest.yaml"
)

// options is shared by all commands. cfg is filled in before any command runs.
type options struct {
	configFile string
	v          *viper.Viper
	cfg        models.Configuration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	// Every key needs a default for AutomaticEnv to reach it on Unmarshal
	v.SetDefault("debug", false)
	v.SetDefault("log_dir", "")
	v.SetDefault("start_timeout", time.Duration(0))
	v.SetDefault("max_attempts", 0)
	v.SetDefault("stop_timeout", 10*time.Second)
	v.SetDefault("flavors_file", "")
	v.SetDefault("metrics_addr", "")
	return v
}

// loadConfiguration reads path into v and decodes the result. Without an
// explicit path, $HOME/.useintest.yaml is read when it exists.
func loadConfiguration(v *viper.Viper, path string) (models.Configuration, error) {
	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, configFileName)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.Is(err, fs.ErrNotExist) || errors.As(err, &notFound)
			if explicit || !missing {
				return models.Configuration{}, fmt.Errorf("read config file %q: %w", path, err)
			}
		}
	}

	var cfg models.Configuration
	if err := v.Unmarshal(&cfg); err != nil {
		return models.Configuration{}, fmt.Errorf("parse config %q: %w", path, err)
	}
	if cfg.MaxAttempts < 0 {
		return models.Configuration{}, fmt.Errorf("max_attempts %d is negative", cfg.MaxAttempts)
	}
	return cfg, nil
}

func NewRootCmd() *cobra.Command {
	o := &options{v: newViper()}

	cmd := &cobra.Command{
		Use:   "useintest",
		Short: "Start throwaway containerized services for tests",
		Long: `useintest starts services such as databases in fresh Docker containers,
waits until they are ready, and removes them again once they are not needed.

Usage:
  useintest flavors                   # List the known services
  useintest start mongo               # Start MongoDB, stop it on Ctrl-C
  useintest start mongo:4.4 --keep    # Start another tag and leave it running
  useintest cleanup                   # Remove containers left behind by crashed runs`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfiguration(o.v, o.configFile)
			if err != nil {
				return err
			}
			o.cfg = cfg

			if err := logger.InitWithFile(cfg.Debug, cfg.LogDir, nil); err != nil {
				return err
			}
			logger.Log.Debug().Str("config", o.v.ConfigFileUsed()).Msg("configuration loaded")
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return logger.CloseFileWriter()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "config file (default $HOME/"+configFileName+")")
	flags.Bool("debug", false, "enable debug logging")
	flags.String("log-dir", "", "also write logs to a rotating file in this directory")
	flags.String("flavors-file", "", "YAML file with additional flavors")
	bindFlags(o.v, flags, map[string]string{
		"debug":        "debug",
		"log_dir":      "log-dir",
		"flavors_file": "flavors-file",
	})

	cmd.AddCommand(newStartCmd(o))
	cmd.AddCommand(newFlavorsCmd(o))
	cmd.AddCommand(newCleanupCmd(o))

	return cmd
}

// bindFlags lets each flag override the configuration key it is mapped to.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if f := flags.Lookup(name); f != nil {
			_ = v.BindPFlag(key, f)
		}
	}
}

// Execute runs the command line under ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
