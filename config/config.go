// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2017 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package config parses the fullnode command-line and ini-file
// configuration (spec.md §6's PeerGroup/NetworkParameters configuration
// surface, plus data directory and logging options).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/btcfullnode/node/params"
)

const (
	defaultConfigFilename = "fullnode.conf"
	defaultDataDirname     = "data"
	defaultLogDirname      = "logs"
	defaultLogLevel        = "info"
	defaultMaxPeers        = 8
)

var (
	defaultHomeDir   = defaultAppDataDir()
	defaultConfigFile = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir   = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultLogDir    = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// Config defines the configuration options for the fullnode binary.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store the block chain and UTXO set"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	TestNet3 bool `long:"testnet" description:"Use the test network"`
	RegTest  bool `long:"regtest" description:"Use the regression test network"`
	SimNet   bool `long:"simnet" description:"Use the simulation test network"`

	AddPeers    []string `short:"a" long:"addpeer" description:"Add a peer to connect with at startup"`
	Listen      string   `long:"listen" description:"Address to listen for inbound connections"`
	MaxPeers    int      `long:"maxpeers" description:"Maximum number of peers"`
	NoDNSSeed   bool     `long:"nodnsseed" description:"Disable DNS seeding for peers"`
	Connect     []string `long:"connect" description:"Connect to the specified peers at startup (DNS seeding and peers learned from addr messages stay enabled)"`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level: trace, debug, info, warn, error, critical"`

	netParams *params.Params
}

func defaultAppDataDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".fullnode")
	}
	return "."
}

// Load parses command-line arguments (and, if present, the config file)
// into a Config with defaults applied and invariants checked.
func Load() (*Config, error) {
	cfg := Config{
		ConfigFile: defaultConfigFile,
		DataDir:    defaultDataDir,
		LogDir:     defaultLogDir,
		MaxPeers:   defaultMaxPeers,
		DebugLevel: defaultLogLevel,
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		return nil, err
	}

	if _, err := os.Stat(cfg.ConfigFile); err == nil {
		if err := flags.NewIniParser(parser).ParseFile(cfg.ConfigFile); err != nil {
			return nil, errors.Wrap(err, "config: parsing config file")
		}
		// Parse the command line again so it overrides the file.
		if _, err := parser.Parse(); err != nil {
			return nil, err
		}
	}

	numNets := 0
	for _, active := range []bool{cfg.TestNet3, cfg.RegTest, cfg.SimNet} {
		if active {
			numNets++
		}
	}
	if numNets > 1 {
		return nil, errors.New("config: testnet, regtest, and simnet are mutually exclusive")
	}

	switch {
	case cfg.TestNet3:
		cfg.netParams = &params.TestNet3Params
	case cfg.RegTest:
		cfg.netParams = &params.RegressionNetParams
	case cfg.SimNet:
		cfg.netParams = &params.SimNetParams
	default:
		cfg.netParams = &params.MainNetParams
	}

	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.netParams.Name)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.netParams.Name)

	if cfg.Listen == "" {
		cfg.Listen = fmt.Sprintf(":%s", cfg.netParams.DefaultPort)
	}

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, errors.Wrap(err, "config: creating data directory")
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, errors.Wrap(err, "config: creating log directory")
	}

	return &cfg, nil
}

// NetParams returns the active network's parameters, resolved by Load
// from the TestNet3/RegTest/SimNet flags (defaulting to main network).
func (cfg *Config) NetParams() *params.Params {
	return cfg.netParams
}
