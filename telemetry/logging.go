// Package telemetry provides structured logging shared by the scheduler,
// agent, and adapters. Output routing (errors to stderr, everything else to
// stdout) and the ContextLogger builder pattern are adapted from
// common/logging.go and common/logger.go.
package telemetry

import (
	"bytes"
	"os"

	"github.com/sirupsen/logrus"
)

// OutputSplitter routes formatted log lines to stderr for error level and
// above, stdout otherwise, so container log collectors can separate streams.
type OutputSplitter struct{}

func (OutputSplitter) Write(p []byte) (int, error) {
	for _, marker := range []string{"level=error", "level=fatal", "level=panic", `"level":"error"`, `"level":"fatal"`, `"level":"panic"`} {
		if bytes.Contains(p, []byte(marker)) {
			return os.Stderr.Write(p)
		}
	}
	return os.Stdout.Write(p)
}

// Logger is the package-wide logrus instance; individual components should
// derive a *ContextLogger from it via NewContextLogger rather than logging
// through it directly.
var Logger = logrus.New()

func init() {
	Logger.SetOutput(&OutputSplitter{})
}
