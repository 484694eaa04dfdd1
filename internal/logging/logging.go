// Package logging configures the per-process logrus logger used
// throughout the overlay. Setup follows pkg/flags.ConfigureAndParse's
// level-handling idiom (a string level flag parsed with
// logrus.ParseLevel, logging fatally on an unrecognized name), adapted
// to also attach the file sink: logs/super_peers/<port>.log
// or logs/leaf_nodes/<port>_{server,client}.log.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// EvalField marks a log entry as one of the "!"-prefixed eval lines,
// for post-hoc analysis tooling to filter on without string-matching
// the message body.
const EvalField = "eval"

// New builds a *logrus.Logger that writes to both stdout and the file
// at path, creating parent directories as needed.
func New(path string, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: invalid log level %q: %w", level, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}

	logger := log.New()
	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.SetOutput(io.MultiWriter(os.Stdout, f))

	return logger, nil
}

// SuperPeerLogPath returns the conventional log path for a super-peer
// listening on port.
func SuperPeerLogPath(port int32) string {
	return filepath.Join("logs", "super_peers", fmt.Sprintf("%d.log", port))
}

// LeafLogPath returns the conventional log path for a leaf's server or
// client role, listening/connecting on port.
func LeafLogPath(port int32, role string) string {
	return filepath.Join("logs", "leaf_nodes", fmt.Sprintf("%d_%s.log", port, role))
}

// Eval writes a "!"-prefixed eval line, for post-hoc analysis.
func Eval(logger *log.Entry, format string, args ...interface{}) {
	logger.WithField(EvalField, true).Infof("!"+format, args...)
}
