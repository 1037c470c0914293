package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/madhesh-litfest/mlf/pkg/config"
	"github.com/madhesh-litfest/mlf/pkg/logging"
	"github.com/madhesh-litfest/mlf/pkg/storage"
)

var configPath string

// loadConfigFn allows tests to inject configuration without touching the
// user's home directory.
var loadConfigFn = func() (*config.Config, error) {
	if p := strings.TrimSpace(configPath); p != "" {
		return config.LoadFromPath(p)
	}
	return config.Load()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mlf",
		Short: "Madhesh Literature Festival site",
		Long: `mlf serves the Madhesh Literature Festival website and its admin area.

Content lives in the hosted store when MLF_STORE_URL and MLF_STORE_ANON_KEY
are set, otherwise in a local SQLite database under ~/.mlf.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default: ~/.mlf/config.yaml then ./.mlf/config.yaml)")

	root.AddCommand(
		newServeCmd(),
		newSeedCmd(),
		newAdminCmd(),
		newVersionCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := loadConfigFn()
	if err != nil {
		return nil, withExitCode(err, exitConfig)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(logging.Options{
		Level: logging.Level(cfg.Logging.Level),
		Dev:   cfg.Logging.Dev,
	})
	if err != nil {
		return nil, withExitCode(err, exitConfig)
	}
	return logger, nil
}

// openLocalStore opens the SQLite database the local driver and the web
// sessions share.
func openLocalStore(cfg *config.Config) (*storage.Store, error) {
	store, err := storage.New(cfg.DatabasePath())
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	return store, nil
}

func printWarnings(cfg *config.Config) {
	for _, w := range cfg.ValidationWarnings() {
		fmt.Fprintf(os.Stderr, "warning: %s\n", w)
	}
}
