// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/assure-cli/internal/config"
	"github.com/xkilldash9x/assure-cli/internal/observability"
)

type contextKey string

const configKey contextKey = "config"

// ErrScriptFailed is returned when a script ran but one of its commands
// failed. The console reporter has already described the failure.
var ErrScriptFailed = errors.New("script failed")

// NewRootCommand builds the command tree. Each call returns an independent
// tree so tests and repeated executions do not share flag state.
func NewRootCommand() *cobra.Command {
	var (
		cfgFile  string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:           "assure",
		Short:         "Assure runs plain-text browser test scripts.",
		Version:       Version,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			config.SetDefaults(v)

			// 1. Initialize configuration loading
			if err := initializeConfig(v, cfgFile); err != nil {
				return fmt.Errorf("failed to initialize configuration: %w", err)
			}
			if logLevel != "" {
				v.Set("logger.level", logLevel)
			}

			// 2. Create the configuration object from viper.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "assure"})
				return fmt.Errorf("failed to load or validate config: %w", err)
			}

			// 3. Initialize the logger with the loaded config.
			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Debug("Starting assure", zap.String("version", Version), zap.String("config_file", v.ConfigFileUsed()))

			// 4. Store the validated config in the command's context for subcommands.
			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./assure.yaml, then ~/.config/assure/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logger.level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

// Execute runs the command tree with ctx, which main cancels on SIGINT or
// SIGTERM.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrScriptFailed) && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	observability.GetLogger().Debug("Command execution failed", zap.Error(err))
	return err
}

// configFrom returns the configuration stored by PersistentPreRunE.
func configFrom(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, errors.New("configuration not initialized")
	}
	return cfg, nil
}

// initializeConfig wires env vars and reads the config file, if one exists.
func initializeConfig(v *viper.Viper, cfgFile string) error {
	v.SetEnvPrefix("ASSURE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	path, err := findConfigFile(cfgFile)
	if err != nil {
		return err
	}
	if path == "" {
		// Config file not found; proceed with defaults/env vars
		return nil
	}

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return nil
}

// findConfigFile resolves the explicit --config path or the first default
// location that exists.
func findConfigFile(cfgFile string) (string, error) {
	if cfgFile != "" {
		path, err := homedir.Expand(cfgFile)
		if err != nil {
			return "", fmt.Errorf("invalid config path %q: %w", cfgFile, err)
		}
		return path, nil
	}

	candidates := []string{"assure.yaml"}
	if home, err := homedir.Dir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "assure", "config.yaml"))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && !info.IsDir() {
			return c, nil
		}
	}
	return "", nil
}
