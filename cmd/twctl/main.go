// Command twctl runs the crawler without the tray and exposes maintenance
// tasks for the queue, archive and X session.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/threadwalk/internal/app"
	"github.com/ibeckermayer/threadwalk/internal/config"
	"github.com/ibeckermayer/threadwalk/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

var (
	// cfgFile overrides the default config location.
	cfgFile string

	debug bool

	rootCmd = &cobra.Command{
		Use:           "twctl",
		Short:         "Crawl X threads and notify Discord",
		Long:          `twctl drives a Chrome session over X timelines, queues popular tweets, walks their threads and archives what it finds.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is the user config dir)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "twctl version %s\n", version)
		},
	})

	rootCmd.AddCommand(
		runCommand(),
		loginCommand(),
		logoutCommand(),
		statsCommand(),
		resetQueueCommand(),
		exportCommand(),
		onlyHomeCommand(),
		openCommand(),
		botTestCommand(),
	)
}

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// Execute runs the root command
func Execute() error {
	if err := config.LoadDotEnv(); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return rootCmd.ExecuteContext(context.Background())
}

// setup loads config and builds the logger every command shares
func setup() (*config.Config, *logrus.Entry, error) {
	cfg, created, err := config.LoadOrCreate(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.Log.Level
	if debug {
		level = "debug"
	}
	log := logrus.NewEntry(logging.New(level))
	if created {
		log.Info("Created default config")
	}
	return cfg, log, nil
}

// openApp loads config and opens the store. Callers close the App.
func openApp() (*app.App, *logrus.Entry, error) {
	cfg, log, err := setup()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.Open(cfg, version, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}
	return a, log, nil
}
