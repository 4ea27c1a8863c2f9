package logger

import (
	"flag"
	"fmt"
)

// Flags holds the logging-related command-line flags (spec §6: -loglevel).
type Flags struct {
	LogLevel string
}

// RegisterFlags registers logging flags with the given FlagSet.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.LogLevel, "loglevel", "info",
		"Log level: critical, error, warning, info, debug")
	return f
}

// ToConfig converts Flags to a logger Config.
func (f *Flags) ToConfig() *Config {
	cfg := NewConfig()
	cfg.Level = ParseLevel(f.LogLevel)
	return cfg
}

// String returns a string representation of the enabled flags.
func (f *Flags) String() string {
	return fmt.Sprintf("level=%s", f.LogLevel)
}
