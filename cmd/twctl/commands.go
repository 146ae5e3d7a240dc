package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/jedib0t/go-pretty/v6/table"
	pkgbrowser "github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/threadwalk/internal/browser"
	"github.com/ibeckermayer/threadwalk/internal/config"
)

const botTestURL = "https://bot.sannysoft.com"

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Crawl in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, log, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			err = a.Run(ctx)
			if errors.Is(err, context.Canceled) {
				log.Info("Interrupted, shutting down")
				return nil
			}
			return err
		},
	}
}

func loginCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Log in to X in a visible browser and store the session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.TriggerLogin(ctx)
		},
	}
}

func logoutCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored X session",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.TriggerLogout()
		},
	}
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show queue and archive sizes",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.Stats()
			if err != nil {
				return err
			}
			onlyHome, err := a.OnlyHome()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Waiting", "Checked", "Archived", "Home Only", "Logged In"})
			t.AppendRow(table.Row{stats.Waiting, stats.Checked, stats.Archived, onlyHome, a.IsAuthenticated()})
			t.Render()
			return nil
		},
	}
}

func resetQueueCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "reset-queue",
		Short: "Drop every waiting tweet",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.ResetQueue(cmd.Context())
		},
	}
}

func exportCommand() *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the archive to disk and clear it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			exp, err := a.Export()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d tweets to %s\n", exp.Count, exp.JSONPath)
			if open {
				return a.OpenLatestReport()
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&open, "open", false, "open the report after exporting")
	return cmd
}

func onlyHomeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "only-home <true|false>",
		Short: "Crawl the home timeline only, or home plus explore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseBool(args[0])
			if err != nil {
				return fmt.Errorf("invalid value %q: %w", args[0], err)
			}

			a, log, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.SetOnlyHome(v); err != nil {
				return err
			}
			log.WithField("only_home", v).Info("Updated crawl scope")
			return nil
		},
	}
}

func openCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|exports>",
		Short:     "Open the config file or the export directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "exports"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				path string
				err  error
			)
			switch args[0] {
			case "config":
				path = cfgFile
				if path == "" {
					path, err = config.ConfigPath()
				}
			case "exports":
				path, err = config.ExportDir()
				if err == nil {
					err = os.MkdirAll(path, 0755)
				}
			default:
				return fmt.Errorf("unknown target %q", args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to get path: %w", err)
			}
			return pkgbrowser.OpenFile(path)
		},
	}
}

func botTestCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bot-test",
		Short: "Open " + botTestURL + " with the crawler's browser options",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			// Always visible so the fingerprint report can be read.
			page, err := browser.Launch(ctx, false, "")
			if err != nil {
				return err
			}
			defer page.Close()

			if err := page.Navigate(ctx, botTestURL); err != nil {
				return fmt.Errorf("failed to navigate: %w", err)
			}
			log.Info("Press Ctrl+C to close the browser")
			<-ctx.Done()
			return nil
		},
	}
}
