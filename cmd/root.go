package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/bimmerbailey/stencil/internal/config"
	"github.com/bimmerbailey/stencil/internal/recognizer/ollama"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stencil",
	Short: "Mask variable data in messages and group them into templates",
	Long: `Stencil turns free-text messages into templates by replacing dates,
amounts, account numbers, and named entities with placeholder tokens, then
groups identical templates and counts them.

Examples:
  stencil templates data/input.txt
  stencil templates --format json "logs/*.txt"
  stencil templates --follow /var/log/sms.log
  echo "paid Rs 100 to Swiggy" | stencil mask
  stencil patterns`,
	SilenceUsage: true,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.stencil.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("color", "auto", "colorize text output (auto, always, never)")
	rootCmd.PersistentFlags().String("provider", "rules", "entity recognizer (rules, ollama)")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))
	_ = viper.BindPFlag("recognizer.provider", rootCmd.PersistentFlags().Lookup("provider"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".stencil")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("STENCIL")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}

// setDefaults registers the default value of every configuration key.
func setDefaults() {
	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)
	viper.SetDefault("debug", false)
	viper.SetDefault("log_level", "")
	viper.SetDefault("color", "auto")
	viper.SetDefault("input", "")
	viper.SetDefault("max_examples", 3)
	viper.SetDefault("json_input", false)

	viper.SetDefault("recognizer.provider", "rules")
	viper.SetDefault("recognizer.gazetteer", "")
	viper.SetDefault("recognizer.ollama.host", "")
	viper.SetDefault("recognizer.ollama.model", ollama.DefaultModel)
	viper.SetDefault("recognizer.ollama.timeout", "60s")
	viper.SetDefault("recognizer.ollama.cache_size", ollama.DefaultCacheSize)

	viper.SetDefault("redaction.enabled", false)
	viper.SetDefault("redaction.patterns", []string{})
}

// loadConfig unmarshals the merged flag, env, and file configuration.
func loadConfig() (*config.Config, error) {
	cfg := &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.MaxExamples < 0 {
		return nil, fmt.Errorf("max_examples must not be negative, got %d", cfg.MaxExamples)
	}
	return cfg, nil
}

// newLogger builds the diagnostic logger. Only errors are shown unless
// verbose, debug, or log_level ask for more.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	level := config.ParseLogLevel(cfg.LogLevel)
	if cfg.Verbose && level > slog.LevelInfo {
		level = slog.LevelInfo
	}
	if viper.GetBool("debug") {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

// commandContext returns the command's context, or a background context
// when the command is run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
