package util

import "github.com/sirupsen/logrus"

// ContinueOrFatal stops the process when a startup step failed. step names
// what was being wired, e.g. "redis draft".
func ContinueOrFatal(err error, step ...string) {
	if err == nil {
		return
	}

	entry := logrus.WithError(err)
	if len(step) > 0 {
		entry = entry.WithField("step", step[0])
	}
	entry.Fatal("startup failed")
}
