package main

import (
	"fmt"
	"os"

	"hrtoolkit/internal/config"
	"hrtoolkit/internal/logging"
	"hrtoolkit/internal/logic"
	"hrtoolkit/internal/version"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string
	logLevel   string
	seed       int64

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:     "hrtoolkit",
	Short:   "Prize draws and random groups for HR events",
	Version: version.Version,
	Long: `hrtoolkit picks winners and splits participant lists into balanced groups.

Run "hrtoolkit bot" to serve a Telegram chat, or use the roster, draw and
group commands on a local file or stdin.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "hrtoolkit.yaml", "YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().Int64Var(&seed, "seed", 0, "Random seed; 0 seeds from the clock")
	rootCmd.SetVersionTemplate("hrtoolkit version {{.Version}}\n")

	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(rosterCmd)
	rootCmd.AddCommand(drawCmd)
	rootCmd.AddCommand(groupCmd)
}

func newRand() logic.Rand { return logic.NewRand(seed) }

func spinConfig() logic.SpinConfig {
	spin := logic.DefaultSpin()
	spin.Ticks = cfg.SpinTicks
	spin.Interval = cfg.SpinInterval
	return spin
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
