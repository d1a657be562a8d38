package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags are the configuration flags of the CLI, registered on a command's
// persistent flag set.
type Flags struct {
	fs         *pflag.FlagSet
	configFile string
	addr       string
	sessionDB  string
	timeout    time.Duration
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	var d Config
	d.LoadDefaults()

	f := &Flags{fs: fs}
	fs.StringVarP(&f.configFile, "config", "c", "", "JSON configuration file")
	fs.StringVarP(&f.addr, "addr", "a", d.ServerEndpointAddr, "address and port to access server")
	fs.StringVarP(&f.sessionDB, "session", "f", d.SessionDB, "session database file")
	fs.DurationVarP(&f.timeout, "timeout", "r", d.RequestTimeout, "request timeout")
	return f
}

// Load builds the Config from defaults, the JSON file and then the flags
// that were set on the command line.
func (f *Flags) Load() (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if f.configFile != "" {
		if err := cfg.LoadFile(f.configFile); err != nil {
			return nil, err
		}
	}

	if f.fs.Changed("addr") {
		cfg.ServerEndpointAddr = f.addr
	}
	if f.fs.Changed("session") {
		cfg.SessionDB = f.sessionDB
	}
	if f.fs.Changed("timeout") {
		cfg.RequestTimeout = f.timeout
	}
	return cfg, nil
}
