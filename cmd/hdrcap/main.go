package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/breeze-rmm/hdrcap/internal/config"
	"github.com/breeze-rmm/hdrcap/internal/logging"
)

var (
	version = "0.1.0"

	cfgFile       string
	flagLogLevel  string
	flagLogFormat string
	flagLogFile   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "hdrcap",
	Short: "HDR-aware screen capture for Windows",
	Long: `hdrcap captures monitors and windows through DXGI desktop duplication,
in 8-bit BGRA or 16-bit float scRGB on HDR displays, and writes png, bmp,
jpg, tiff, jxr and exr files.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setup(); err != nil {
			return err
		}
		cmd.SetContext(logging.NewContext(cmd.Context(), logging.L("cli")))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("hdrcap v%s\n", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is hdrcap.yaml in the user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "", "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "log to this file instead of stderr")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(shotCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(benchCmd)
}

func setup() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLogFormat != "" {
		cfg.LogFormat = flagLogFormat
	}
	if flagLogFile != "" {
		cfg.LogFile = flagLogFile
	}
	cfg.Validate()

	var out io.Writer
	if cfg.LogFile != "" {
		rw, err := logging.NewRotatingWriter(cfg.LogFile, cfg.LogMaxSizeMB, 3)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		out = rw
	}
	logging.Init(cfg.LogFormat, cfg.LogLevel, out)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
