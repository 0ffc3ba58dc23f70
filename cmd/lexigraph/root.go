// Package lexigraph holds the lexigraph command line.
package lexigraph

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/soundprediction/lexigraph/pkg/config"
	"github.com/soundprediction/lexigraph/pkg/logger"
	"github.com/soundprediction/lexigraph/pkg/telemetry"
)

var (
	cfgFile string
	rootCmd = &cobra.Command{
		Use:   "lexigraph",
		Short: "Lexigraph: statute retrieval over a semantic graph",
		Long: `Lexigraph answers questions over a hierarchical statute corpus.
Queries are routed to the best-fitting domain, searched with exact, content
and relation retrieval, expanded over the document graph, and answered in
collaboration with peer domains when one domain is not enough.`,
		SilenceUsage: true,
	}
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.lexigraph.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "color", "log format (color, text, json)")

	rootCmd.PersistentFlags().String("db-driver", "neo4j", "graph store driver (neo4j, memory)")
	rootCmd.PersistentFlags().String("db-uri", "bolt://localhost:7687", "Neo4j URI")
	rootCmd.PersistentFlags().String("fixture", "", "YAML snapshot for the memory driver")
	rootCmd.PersistentFlags().String("a2a-transport", "local", "peer transport (local, http)")

	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".lexigraph")
	}

	viper.SetEnvPrefix("LEXIGRAPH")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadConfig loads the process configuration, applies command-line flags and
// validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. When a telemetry path is configured,
// error records are also spooled to Parquet; the returned closer flushes them.
func newLogger(cfg *config.Config, w io.Writer) (*slog.Logger, io.Closer) {
	opts := &slog.HandlerOptions{Level: logger.ParseLevel(cfg.Log.Level)}

	var handler slog.Handler
	switch cfg.Log.Format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = logger.NewColorHandler(w, opts)
	}

	if cfg.Telemetry.ParquetPath == "" {
		return slog.New(handler), nopCloser{}
	}
	ph, err := telemetry.NewParquetHandler(handler, cfg.Telemetry.ParquetPath)
	if err != nil {
		l := slog.New(handler)
		l.Warn("Error tracking disabled", "path", cfg.Telemetry.ParquetPath, "error", err)
		return l, nopCloser{}
	}
	return slog.New(ph), ph
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
