package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/veracity/internal/logging"
	"github.com/ppiankov/veracity/internal/model"
)

// Version is set at build time with -ldflags
var Version = "v0.1.0"

var (
	cfgFile     string
	verbose     bool
	metricsAddr string
	actorID     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "veracity",
	Short: "Veracity - trust and consensus engine for claim graphs",
	Long: `Veracity turns evidence, votes and challenges into credibility, reputation
and consensus scores, and uses them to gate irreversible transitions:
promoting a claim graph to the verified tier, applying an amendment,
admitting a curator.

Every score is explained by the signals that produced it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("veracity %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.veracity/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs (e.g. :9090)")
	rootCmd.PersistentFlags().String("store-driver", "", "store driver (sqlite, pgx)")
	rootCmd.PersistentFlags().String("store-dsn", "", "store DSN (sqlite path or postgres URL)")

	// Bind flags to viper
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("store.driver", rootCmd.PersistentFlags().Lookup("store-driver"))
	_ = viper.BindPFlag("store.dsn", rootCmd.PersistentFlags().Lookup("store-dsn"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".veracity"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// VERACITY_STORE_DSN overrides store.dsn, and so on
	viper.SetEnvPrefix("VERACITY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// loadConfig layers the config file, environment and flags over the defaults
func loadConfig() (model.Config, error) {
	cfg := model.DefaultConfig()

	// AutomaticEnv only covers keys viper already knows about
	for _, key := range []string{
		"store.driver", "store.dsn",
		"embedding.provider", "embedding.model", "embedding.api_key", "embedding.base_url",
		"events.redis_url", "events.channel",
		"sources.check_on_submit", "sources.http_proxy", "sources.https_proxy", "sources.no_proxy",
		"logging.level", "logging.format",
	} {
		_ = viper.BindEnv(key)
	}

	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Embedding.APIKey == "" && strings.EqualFold(cfg.Embedding.Provider, "openai") {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Embedding.BaseURL == "" && strings.EqualFold(cfg.Embedding.Provider, "ollama") {
		cfg.Embedding.BaseURL = os.Getenv("OLLAMA_BASE_URL")
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return cfg, err
	}
	logging.Init(level, cfg.Logging.Format)
	return cfg, nil
}

// requireActor returns the --actor flag value for commands that change state
func requireActor() (string, error) {
	if strings.TrimSpace(actorID) == "" {
		return "", errors.New("--actor is required for this command")
	}
	return actorID, nil
}
