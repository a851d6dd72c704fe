// Package cli implements the engram CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/engram/internal/embedding"
	"github.com/rcliao/engram/internal/engine"
)

var (
	dataFlag   string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Associative memory on a cellular substrate",
	Long: "Stores text as attractor states of a cellular automaton and recalls " +
		"by resonance instead of exact match. Single binary, SQLite-backed.",
}

func init() {
	godotenv.Load()
	RootCmd.PersistentFlags().StringVarP(&dataFlag, "data", "d", "", "Data directory (default: $ENGRAM_DATA or ~/.engram)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
}

func dataRoot() string {
	if dataFlag != "" {
		return dataFlag
	}
	if env := os.Getenv("ENGRAM_DATA"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".engram")
}

func buildLogger() *zap.Logger {
	if !verbose {
		return zap.NewNop()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	log, err := cfg.Build()
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func openEngine() (*engine.Engine, error) {
	cfg := engine.DefaultConfig(dataRoot())
	cfg.Log = buildLogger()

	emb, err := embedding.NewFromEnv()
	if err != nil {
		return nil, err
	}
	cfg.Embedder = emb

	return engine.New(cfg)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}

func emitJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
