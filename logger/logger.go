// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logger wires up the per-subsystem loggers shared by the wire,
// blockchain, peer and peergroup packages.
package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/btcsuite/btclog"
	"github.com/jrick/logrotate/rotator"
)

// logWriter implements an io.Writer that outputs to both standard output and
// the write-end pipe of an initialized log rotator.
type logWriter struct{}

func (logWriter) Write(p []byte) (n int, err error) {
	os.Stdout.Write(p)
	if LogRotator != nil {
		LogRotator.Write(p)
	}
	return len(p), nil
}

// backendLog is the logging backend used to create all subsystem loggers.
var backendLog = btclog.NewBackend(logWriter{})

// LogRotator is the rotating log file written alongside stdout. It should be
// closed on application shutdown.
var LogRotator *rotator.Rotator

// SubsystemTags is an enum of all subsystem tags known to the logger.
var SubsystemTags = struct {
	CODC, CHAN, STOR, PEER, PGRP, RPCS string
}{
	CODC: "CODC",
	CHAN: "CHAN",
	STOR: "STOR",
	PEER: "PEER",
	PGRP: "PGRP",
	RPCS: "RPCS",
}

var subsystemLoggers = map[string]btclog.Logger{
	SubsystemTags.CODC: backendLog.Logger(SubsystemTags.CODC),
	SubsystemTags.CHAN: backendLog.Logger(SubsystemTags.CHAN),
	SubsystemTags.STOR: backendLog.Logger(SubsystemTags.STOR),
	SubsystemTags.PEER: backendLog.Logger(SubsystemTags.PEER),
	SubsystemTags.PGRP: backendLog.Logger(SubsystemTags.PGRP),
	SubsystemTags.RPCS: backendLog.Logger(SubsystemTags.RPCS),
}

// InitLogRotator initializes the logging rotator to write logs to logFile,
// creating roll files alongside it. It must be called before relying on
// LogRotator elsewhere.
func InitLogRotator(logFile string) {
	logDir, _ := filepath.Split(logFile)
	err := os.MkdirAll(logDir, 0700)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create log directory: %s\n", err)
		os.Exit(1)
	}
	r, err := rotator.New(logFile, 10*1024, false, 3)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create file rotator: %s\n", err)
		os.Exit(1)
	}
	LogRotator = r
}

// SetLogLevel sets the logging level for the provided subsystem. Invalid
// subsystems are ignored.
func SetLogLevel(subsystemID string, logLevel string) {
	logger, ok := subsystemLoggers[subsystemID]
	if !ok {
		return
	}
	level, _ := btclog.LevelFromString(logLevel)
	logger.SetLevel(level)
}

// SetLogLevels sets the log level for all subsystem loggers to the passed
// level.
func SetLogLevels(logLevel string) {
	for subsystemID := range subsystemLoggers {
		SetLogLevel(subsystemID, logLevel)
	}
}

// Get returns the logger registered for a specific subsystem.
func Get(tag string) (btclog.Logger, bool) {
	logger, ok := subsystemLoggers[tag]
	return logger, ok
}

// SupportedSubsystems returns a sorted slice of the supported subsystems for
// logging purposes.
func SupportedSubsystems() []string {
	subsystems := make([]string, 0, len(subsystemLoggers))
	for subsysID := range subsystemLoggers {
		subsystems = append(subsystems, subsysID)
	}
	sort.Strings(subsystems)
	return subsystems
}

// ParseAndSetDebugLevels attempts to parse the specified debug level string
// and set the levels accordingly. An appropriate error is returned if
// anything is invalid.
func ParseAndSetDebugLevels(debugLevel string) error {
	if !strings.Contains(debugLevel, ",") && !strings.Contains(debugLevel, "=") {
		if !validLogLevel(debugLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", debugLevel)
		}
		SetLogLevels(debugLevel)
		return nil
	}

	for _, logLevelPair := range strings.Split(debugLevel, ",") {
		if !strings.Contains(logLevelPair, "=") {
			return fmt.Errorf("the specified debug level contains an "+
				"invalid subsystem/level pair [%s]", logLevelPair)
		}

		fields := strings.Split(logLevelPair, "=")
		subsysID, logLevel := fields[0], fields[1]

		if _, exists := Get(subsysID); !exists {
			return fmt.Errorf("the specified subsystem [%s] is invalid -- "+
				"supported subsystems %s", subsysID, strings.Join(SupportedSubsystems(), ", "))
		}
		if !validLogLevel(logLevel) {
			return fmt.Errorf("the specified debug level [%s] is invalid", logLevel)
		}
		SetLogLevel(subsysID, logLevel)
	}
	return nil
}

func validLogLevel(logLevel string) bool {
	switch logLevel {
	case "trace", "debug", "info", "warn", "error", "critical":
		return true
	}
	return false
}

// DirectionString returns a string that represents the direction of a
// connection (inbound or outbound).
func DirectionString(inbound bool) string {
	if inbound {
		return "inbound"
	}
	return "outbound"
}

// PickNoun returns the singular or plural form of a noun depending on the
// count n.
func PickNoun(n uint64, singular, plural string) string {
	if n == 1 {
		return singular
	}
	return plural
}
