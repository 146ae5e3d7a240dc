package pages

import (
	"context"
	"time"

	"github.com/ibeckermayer/threadwalk/internal/dispatcher"
	"github.com/ibeckermayer/threadwalk/internal/poll"
	"github.com/ibeckermayer/threadwalk/internal/store"
)

const lockedProgressJob = "locked-progress"

// Compose dismisses the compose dialog and goes back.
func (h *Handlers) Compose(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	ok, err := s.Page.Exists(ctx, ComposeClose)
	if err != nil {
		s.Log().WithError(err).Debug("Compose close button lookup failed")
	}
	if ok {
		if err := s.Page.Click(ctx, ComposeClose, 0); err != nil {
			s.Log().WithError(err).Debug("Compose close click failed")
		}
	}
	return dispatcher.Back(), nil
}

// Locked waits out an account lock. The operator is notified once per lock:
// the flag is set as soon as the notification tab is open, whatever the
// webhook answers. The page is left for the fallback address after the
// redirect delay whether or not the lock was lifted.
func (h *Handlers) Locked(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	notified, err := h.store.Bool(store.KeyLockedNotified)
	if err != nil {
		return dispatcher.Stay(), err
	}
	if !notified {
		if err := s.Open(ctx, h.OperatorURL(PathNotifyLocked)); err != nil {
			s.Log().WithError(err).Error("Failed to open lock notification")
		} else if err := h.store.SetBool(store.KeyLockedNotified, true); err != nil {
			return dispatcher.Stay(), err
		}
	}

	delay := h.timing.LockedRedirectDelay.D()
	deadline := time.Now().Add(delay)
	s.Log().WithField("redirect_in", delay.String()).Warn("Account locked")

	err = s.Scheduler.AddEvery(lockedProgressJob, h.timing.LockedCheckInterval.D(), func(ctx context.Context) error {
		s.Log().WithField("remaining", time.Until(deadline).Round(time.Second).String()).Info("Account still locked")
		return nil
	})
	if err != nil {
		return dispatcher.Stay(), err
	}

	if err := poll.Sleep(ctx, delay); err != nil {
		return dispatcher.Stay(), err
	}
	return dispatcher.Navigate(h.nav.FallbackURL), nil
}

// Login asks the operator to sign in, once per logout.
func (h *Handlers) Login(ctx context.Context, s *dispatcher.Session) (dispatcher.Transition, error) {
	notified, err := h.store.Bool(store.KeyLoginNotified)
	if err != nil {
		return dispatcher.Stay(), err
	}
	if !notified {
		if err := s.Open(ctx, h.OperatorURL(PathNotifyLogin)); err != nil {
			return dispatcher.Stay(), err
		}
	}
	return dispatcher.Stay(), nil
}
