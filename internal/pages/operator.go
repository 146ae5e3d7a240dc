package pages

import (
	"context"
	"fmt"

	"github.com/ibeckermayer/threadwalk/internal/dispatcher"
	"github.com/ibeckermayer/threadwalk/internal/notifier"
)

const (
	loginMessage    = "Login required. Crawling is paused until the account signs in again."
	lockedMessage   = "Account locked. Crawling is paused and will resume from the fallback page later."
	unlockedMessage = "Account unlocked. Crawling resumed."
	updateMessage   = "threadwalk updated to %s."
)

// notifyPage sends message once and closes the tab. flag, when set, is
// stored as true after the webhook answered. A failed send leaves the
// flag alone so the next visit tries again.
func (h *Handlers) notifyPage(message, flag string, mention bool) dispatcher.Handler {
	return func(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
		var opts []notifier.Option
		if mention {
			opts = append(opts, notifier.WithMention())
		}

		resp, err := h.notifier.Notify(ctx, message, opts...)
		if err != nil {
			s.Log().WithError(err).Error("Notification not delivered")
			return dispatcher.Close(), nil
		}
		if resp == nil {
			return dispatcher.Close(), nil
		}

		if flag != "" {
			if err := h.store.SetBool(flag, true); err != nil {
				return dispatcher.Close(), err
			}
		}
		return dispatcher.Close(), nil
	}
}

func (h *Handlers) notifyUpdate(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	return h.notifyPage(fmt.Sprintf(updateMessage, h.version), "", false)(ctx, s)
}

// CheckVersion stores the running version and reports whether it differs
// from the one stored before.
func (h *Handlers) CheckVersion() (bool, error) {
	stored, err := h.store.StoredVersion()
	if err != nil {
		return false, err
	}
	if stored == h.version {
		return false, nil
	}
	if err := h.store.SetStoredVersion(h.version); err != nil {
		return false, err
	}
	return true, nil
}

// Export writes the archive to the export directory, clears it and
// carries on with the queue.
func (h *Handlers) Export(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	exp, err := h.archive.ExportAndClear(h.exportDir)
	if err != nil {
		return dispatcher.Stay(), fmt.Errorf("export failed: %w", err)
	}
	if exp.Count > 0 {
		s.Log().WithField("count", exp.Count).WithField("path", exp.JSONPath).Info("Archive exported")
	}
	return dispatcher.Next(RouteTweetOnlyOpen, h.TweetOnlyOpen), nil
}

// Reset empties the waiting queue.
func (h *Handlers) Reset(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	if err := h.queue.ResetWaiting(ctx); err != nil {
		return dispatcher.Stay(), err
	}
	s.Log().Info("Waiting queue cleared")
	return dispatcher.Navigate(h.nav.FallbackURL), nil
}
