// Package exec provides the retry discipline used for every drone command.
//
// Transport faults are common on the drone link, so every movement or
// stream command goes through Execute. Failure is reported as a boolean,
// never raised: callers decide what a failed command means for them.
package exec

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Action is a single hardware command that may fail with a transport error.
type Action func() error

// Defaults used by callers that have no reason to deviate.
const (
	DefaultRetries = 3
	DefaultDelay   = time.Second
)

// Execute invokes action, retrying with a fixed delay between attempts,
// up to maxRetries attempts total. It returns true on the first attempt
// that succeeds. The delay is fixed on purpose: callers that need
// escalating backoff wrap this primitive themselves.
func Execute(action Action, maxRetries int, delay time.Duration, label string) bool {
	if maxRetries < 1 {
		maxRetries = 1
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		err := action()
		if err == nil {
			logrus.Infof("%s successful", label)
			return true
		}

		logrus.WithFields(logrus.Fields{
			"attempt":    attempt,
			"maxRetries": maxRetries,
		}).Warnf("failed %s: %v", label, err)

		if attempt < maxRetries {
			time.Sleep(delay)
		}
	}

	logrus.Errorf("could not complete %s after %d attempts", label, maxRetries)
	return false
}

// Run is Execute with the default retry count and delay.
func Run(action Action, label string) bool {
	return Execute(action, DefaultRetries, DefaultDelay, label)
}
