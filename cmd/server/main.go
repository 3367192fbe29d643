// Command fetchbridge serves a Fetch-style handler over net/http.
//
// Configuration is read from a YAML file, a .env file and FETCHBRIDGE_*
// environment variables, in increasing order of precedence. Command-line
// flags override all of them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rhuss/fetchbridge/pkg/config"
	"github.com/rhuss/fetchbridge/pkg/debug"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:           "fetchbridge",
	Short:         "Serve Fetch-style handlers over HTTP",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (default: ./config.yaml, env: FETCHBRIDGE_CONFIG)")
}

// loadConfig loads the configuration named by the --config flag and
// installs the logger it describes.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	debug.Init(cfg.Logging.Debug, cfg.Logging.Level, cfg.Logging.Format)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
