// Package cmd wires the chirpwire CLI commands.
package cmd

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/chirpwire/chirpwire/internal/config"
	"github.com/chirpwire/chirpwire/internal/observability"
)

var (
	cfgFile string
	verbose bool

	// Version info set by main package
	versionInfo struct {
		Version   string
		Commit    string
		BuildDate string
	}
)

// SetVersionInfo is called by main package to set version information
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "chirpwire",
	Short: "A rate-limit-aware Twitter v2 API client",
	Long: `chirpwire is a command-line Twitter client that tracks API quota
locally and blocks doomed requests before they burn a 429.

Use the subcommands to perform specific operations.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/chirpwire/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (sets log level to debug)")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	observability.InitCLILogger(rootCmd.Use, verbose)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if configFile, err := config.DefaultConfigFile(); err == nil {
			viper.AddConfigPath(filepath.Dir(configFile))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CHIRPWIRE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			observability.CLILogger.Debug("Using config file", zap.String("path", viper.ConfigFileUsed()))
		}
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// It's OK if config file doesn't exist, we have defaults
		if verbose {
			observability.CLILogger.Debug("No config file found, using defaults and environment variables")
		}
	} else if cfgFile != "" {
		// An explicitly named config file that cannot be read is fatal.
		ExitWithCode(observability.CLILogger, foundry.ExitConfigInvalid, "Failed to read config file", err)
	} else if verbose {
		observability.CLILogger.Warn("Error reading config file", zap.Error(err))
	}

	config.SetDefaults(viper.GetViper())
}
