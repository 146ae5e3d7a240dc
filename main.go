package main

import (
	"fmt"
	"os"

	"github.com/getlantern/systray"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/app"
	"github.com/ibeckermayer/threadwalk/internal/config"
	"github.com/ibeckermayer/threadwalk/internal/logging"
	"github.com/ibeckermayer/threadwalk/internal/tray"
)

var version = "dev"

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, "Warning: could not load .env:", err)
	}

	// Load or create configuration
	cfg, created, err := config.LoadOrCreate("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not load config: %v (using defaults)\n", err)
		cfg = config.Default()
		cfg.ApplyEnv()
	}

	log := logrus.NewEntry(logging.New(cfg.Log.Level))
	if created {
		path, _ := config.ConfigPath()
		log.WithField("path", path).Info("Created default config")
	}

	a, err := app.Open(cfg, version, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open store")
	}

	log.WithField("version", version).Info("threadwalk starting")

	// Run systray (blocks until Quit)
	systray.Run(tray.OnReady(a, log), tray.OnExit(a, log))
}
