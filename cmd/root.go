// Package cmd provides the command-line interface for sitepipe.
//
// Configuration is read, lowest priority first, from .sitepipe.yml in the
// working directory (or the file named by --config or SITEPIPE_CONFIG_FILE),
// from a .env file, from SITEPIPE_<SECTION>_<OPTION> environment variables
// and from command-line flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitepipe/internal/config"
	"github.com/conneroisu/sitepipe/internal/logging"
	"github.com/conneroisu/sitepipe/internal/site"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitepipe",
	Short: "Static site asset pipeline with live preview",
	Long: `sitepipe compiles stylesheets, bundles scripts, renders templates with
JSON data and copies images and files into a preview root and a
distribution root.

Without a subcommand it builds everything, then watches the sources,
rebuilds only the affected tasks and reloads the browser.

Quick Start:
  sitepipe                 Build, watch and serve the preview root
  sitepipe build           Build once
  sitepipe validate        Build and check the rendered HTML
  sitepipe graph           Show the task graph
  sitepipe publish         Build and upload the distribution root`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runWatch,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .sitepipe.yml, can also use SITEPIPE_CONFIG_FILE env var)")
	rootCmd.PersistentFlags().StringP("log-level", "l", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	addServeFlags(rootCmd)
}

// initConfig selects the configuration file and enables environment
// overrides. A missing file leaves the defaults in place.
func initConfig() {
	// Values in the environment win over .env.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if envConfigFile := os.Getenv("SITEPIPE_CONFIG_FILE"); envConfigFile != "" {
		viper.SetConfigFile(envConfigFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".sitepipe")
	}

	config.BindEnv(viper.GetViper())
	bindPersistentFlags(rootCmd)

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func bindPersistentFlags(cmd *cobra.Command) {
	_ = viper.BindPFlag("log-level", cmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log-format", cmd.PersistentFlags().Lookup("log-format"))
}

// app is everything a command needs after configuration is loaded.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	site   *site.Site
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  level,
		Format: cfg.Log.Format,
		Output: os.Stderr,
	})

	s, err := site.New(cfg)
	if err != nil {
		return nil, err
	}

	return &app{cfg: cfg, logger: logger, site: s}, nil
}
