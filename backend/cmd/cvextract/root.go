package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AnTengye/cvintake/backend/config"
	"github.com/AnTengye/cvintake/backend/pkg/logger"
	"github.com/spf13/cobra"
)

// configPath is the --config flag shared by all commands
var configPath string

var rootCmd = &cobra.Command{
	Use:          "cvextract",
	Short:        "Extract structured data from CVs",
	Long:         `Run the CV extraction engine against a document URL or a local text file, and mint bearer tokens for the intake API.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		// Logs go to stderr so stdout stays valid JSON
		logger.Init(&logger.Config{Level: "warn", Format: "text", Output: cmd.ErrOrStderr()})
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.Path(), "Path to config file")
}

// loadConfig reads --config, falling back to defaults when the file is absent
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
