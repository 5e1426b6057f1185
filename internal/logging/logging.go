// Package logging configures the process-wide logrus logger.
package logging

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Setup applies level, format ("text" or "json") and an optional log file to
// the standard logger. The returned func closes the file.
func Setup(level, format, file string) (func() error, error) {
	lvl, err := log.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	var out io.Writer = os.Stderr
	closeLog := func() error { return nil }
	if file = strings.TrimSpace(file); file != "" {
		if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
			return closeLog, err
		}
		f, err := os.OpenFile(file, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return closeLog, err
		}
		out = f
		closeLog = f.Close
	}
	log.SetOutput(out)
	return closeLog, nil
}

// Component returns a logger entry tagged with the component name.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}
