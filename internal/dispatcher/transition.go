package dispatcher

import (
	"fmt"
	"time"
)

type kind int

const (
	kindStay kind = iota
	kindNavigate
	kindReload
	kindBack
	kindClose
	kindNext
)

// Transition tells the driver what to do once a handler returns.
type Transition struct {
	kind    kind
	url     string
	wait    time.Duration
	name    string
	handler Handler
}

// Navigate loads url in the same tab.
func Navigate(url string) Transition { return Transition{kind: kindNavigate, url: url} }

// ReloadAfter reloads the page after d.
func ReloadAfter(d time.Duration) Transition { return Transition{kind: kindReload, wait: d} }

// Back goes one entry back in history.
func Back() Transition { return Transition{kind: kindBack} }

// Stay keeps the visit alive until the page changes route or the driver stops.
func Stay() Transition { return Transition{kind: kindStay} }

// Close closes the tab and ends its driver.
func Close() Transition { return Transition{kind: kindClose} }

// Next runs h in the same visit, keeping its crawl loop and session.
func Next(name string, h Handler) Transition {
	return Transition{kind: kindNext, name: name, handler: h}
}

func (t Transition) String() string {
	switch t.kind {
	case kindNavigate:
		return "navigate " + t.url
	case kindReload:
		return fmt.Sprintf("reload after %s", t.wait)
	case kindBack:
		return "back"
	case kindClose:
		return "close"
	case kindNext:
		return "next " + t.name
	default:
		return "stay"
	}
}
