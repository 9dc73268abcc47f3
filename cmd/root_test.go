package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func TestLogFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	path := filepath.Join(t.TempDir(), "jpen.log")
	cmd := &cobra.Command{Use: "test"}
	addConfigFlags(cmd)
	if err := cmd.ParseFlags([]string{"--log-file", path, "--log-level", "debug"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if err := setupLogging(cmd, nil); err != nil {
		t.Fatalf("setupLogging() error = %v", err)
	}
	if logFile == nil {
		t.Fatal("log file not kept open")
	}
	f := logFile
	slog.Debug("Cycle started", "cycle", "abc")

	if err := closeLogFile(cmd, nil); err != nil {
		t.Fatalf("closeLogFile() error = %v", err)
	}
	if logFile != nil {
		t.Error("log file still set after close")
	}
	if _, err := f.Write([]byte("x")); err == nil {
		t.Error("log file still writable after close")
	}
	// Logging after the command finished must not touch the closed file.
	slog.Info("after close")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if !strings.Contains(string(data), "cycle=abc") {
		t.Errorf("log file = %q, want the debug record", data)
	}
	if strings.Contains(string(data), "after close") {
		t.Errorf("log file received records after close: %q", data)
	}

	if err := closeLogFile(cmd, nil); err != nil {
		t.Errorf("second closeLogFile() error = %v", err)
	}
}
