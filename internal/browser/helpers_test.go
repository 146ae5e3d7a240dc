package browser_test

import (
	"time"

	"github.com/ibeckermayer/threadwalk/internal/poll"
)

func pollOpts(tries int) poll.Options {
	return poll.Options{Interval: time.Millisecond, Tries: tries}
}
