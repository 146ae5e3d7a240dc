package tray

import (
	"context"
	_ "embed"
	"time"

	"github.com/getlantern/systray"
	"github.com/pkg/browser"
	"github.com/sirupsen/logrus"

	"github.com/ibeckermayer/threadwalk/internal/app"
	"github.com/ibeckermayer/threadwalk/internal/config"
)

//go:embed icon.png
var iconBytes []byte

const statusRefresh = 5 * time.Second

// OnReady returns a systray onReady callback that sets up the menu.
func OnReady(a *app.App, log *logrus.Entry) func() {
	return func() {
		systray.SetTemplateIcon(iconBytes, iconBytes)
		systray.SetTitle("")
		systray.SetTooltip("threadwalk - X thread crawler")

		mStatus := systray.AddMenuItem("", "Queue and archive sizes")
		mStatus.Disable()
		mAuthStatus := systray.AddMenuItem("", "Authentication status")
		mAuthStatus.Disable()

		systray.AddSeparator()

		mRun := systray.AddMenuItem("Start Crawling", "Start or stop the crawler browser")
		mOnlyHome := systray.AddMenuItemCheckbox("Home Timeline Only", "Skip explore and trends", false)

		systray.AddSeparator()

		mExport := systray.AddMenuItem("Export Archive", "Write saved tweets and a report, then clear them")
		mReport := systray.AddMenuItem("View Last Report", "Open the newest export report")
		mReset := systray.AddMenuItem("Reset Queue", "Drop every waiting tweet")

		systray.AddSeparator()

		mAuthAction := systray.AddMenuItem("", "Login or logout from X")
		mEditConfig := systray.AddMenuItem("Edit Config", "Open config file in editor")

		systray.AddSeparator()

		mQuit := systray.AddMenuItem("Quit", "Exit threadwalk")

		refresh := func() {
			if stats, err := a.Stats(); err == nil {
				mStatus.SetTitle(stats.String())
			} else {
				log.WithError(err).Warn("Failed to read stats")
			}

			if a.IsAuthenticated() {
				mAuthStatus.SetTitle("● Connected to X")
				mAuthAction.SetTitle("Logout")
			} else {
				mAuthStatus.SetTitle("○ Not connected")
				mAuthAction.SetTitle("Login to X")
			}

			if a.Running() {
				mRun.SetTitle("Stop Crawling")
			} else {
				mRun.SetTitle("Start Crawling")
			}

			if only, err := a.OnlyHome(); err == nil && only {
				mOnlyHome.Check()
			} else {
				mOnlyHome.Uncheck()
			}
		}
		refresh()

		ticker := time.NewTicker(statusRefresh)

		go func() {
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					refresh()

				case <-mRun.ClickedCh:
					if a.Running() {
						go func() {
							a.Stop()
							refresh()
						}()
					} else if err := a.Start(); err != nil {
						log.WithError(err).Error("Failed to start crawler")
					}
					refresh()

				case <-mOnlyHome.ClickedCh:
					if err := a.SetOnlyHome(!mOnlyHome.Checked()); err != nil {
						log.WithError(err).Error("Failed to update home-only setting")
					}
					refresh()

				case <-mExport.ClickedCh:
					if _, err := a.Export(); err != nil {
						log.WithError(err).Error("Export failed")
					}
					refresh()

				case <-mReport.ClickedCh:
					if err := a.OpenLatestReport(); err != nil {
						log.WithError(err).Error("Failed to open report")
					}

				case <-mReset.ClickedCh:
					if err := a.ResetQueue(context.Background()); err != nil {
						log.WithError(err).Error("Failed to reset queue")
					}
					refresh()

				case <-mAuthAction.ClickedCh:
					if a.IsAuthenticated() {
						a.TriggerLogout()
						refresh()
					} else {
						go func() {
							a.TriggerLogin(context.Background())
							refresh()
						}()
					}

				case <-mEditConfig.ClickedCh:
					path, err := config.ConfigPath()
					if err != nil {
						log.WithError(err).Error("Failed to get config path")
						continue
					}
					if err := browser.OpenFile(path); err != nil {
						log.WithError(err).Error("Failed to open config file")
					}

				case <-mQuit.ClickedCh:
					systray.Quit()
					return
				}
			}
		}()
	}
}

// OnExit is the systray onExit callback.
func OnExit(a *app.App, log *logrus.Entry) func() {
	return func() {
		log.Info("threadwalk shutting down")
		if err := a.Close(); err != nil {
			log.WithError(err).Error("Failed to close store")
		}
	}
}
