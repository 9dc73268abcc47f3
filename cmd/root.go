package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/StreyKenD/AutoTranslationJPEN/internal/config"
	"github.com/spf13/cobra"
)

// logFile is the --log-file handle, closed after the command finishes
var logFile *os.File

var RootCmd = &cobra.Command{
	Use:                "jpen",
	Short:              "Translate Japanese text on screen into an English overlay",
	PersistentPreRunE:  setupLogging,
	PersistentPostRunE: closeLogFile,
}

func setupLogging(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	ll, err := cmd.Flags().GetString("log-level")
	if err != nil {
		return err
	}

	switch strings.ToUpper(ll) {
	case "DEBUG":
		level = slog.LevelDebug
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	}

	var out io.Writer = os.Stdout
	path, err := cmd.Flags().GetString("log-file")
	if err != nil {
		return err
	}
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		logFile = f
		out = io.MultiWriter(os.Stdout, f)
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}
	handler := slog.New(slog.NewTextHandler(out, opts))
	slog.SetDefault(handler)

	return nil
}

func closeLogFile(cmd *cobra.Command, args []string) error {
	if logFile == nil {
		return nil
	}
	f := logFile
	logFile = nil
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close log file: %w", err)
	}
	return nil
}

func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	addConfigFlags(RootCmd)
}

func addConfigFlags(cmd *cobra.Command) {
	ll := os.Getenv("LOG_LEVEL")
	if ll == "" {
		ll = "INFO"
	}
	configPath := os.Getenv("JPEN_CONFIG")
	if configPath == "" {
		configPath = "jpen.yaml"
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", ll, "The logging level for the command")
	flags.String("log-file", os.Getenv("JPEN_LOG_FILE"), "Also append logs to this file")
	flags.String("config", configPath, "Path to the YAML configuration file")
	flags.Int("left", 0, "Left edge of the capture region in screen pixels")
	flags.Int("top", 0, "Top edge of the capture region in screen pixels")
	flags.Int("width", 0, "Width of the capture region")
	flags.Int("height", 0, "Height of the capture region")
}

// loadConfig reads the configuration file and applies region flags that were
// set explicitly
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	for name, dst := range map[string]*int{
		"left":   &cfg.Region.Left,
		"top":    &cfg.Region.Top,
		"width":  &cfg.Region.Width,
		"height": &cfg.Region.Height,
	} {
		if !cmd.Flags().Changed(name) {
			continue
		}
		if *dst, err = cmd.Flags().GetInt(name); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}
