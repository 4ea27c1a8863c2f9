// Package config holds the gateway's flags-only configuration (spec §6):
// no persisted state, no .env file — simplified from the teacher's
// pkg/config .env loader since this gateway has no cloud credentials to
// load, only a listen port, an optional startup camera URL, and a log
// level.
package config

import (
	"flag"
	"fmt"

	"github.com/m-khomutov/debug-cdn/pkg/logger"
)

// defaultPort is the gateway's HTTP front-door port (spec §6).
const defaultPort = 5566

// Config is the fully resolved runtime configuration.
type Config struct {
	Port     int
	URL      string
	LogLevel logger.Level
}

// Parse registers and parses the gateway's flags from args (typically
// os.Args[1:]).
func Parse(fs *flag.FlagSet, args []string) (*Config, error) {
	logFlags := logger.RegisterFlags(fs)

	port := fs.Int("port", defaultPort, "gateway HTTP listen port")
	url := fs.String("url", "", "optional rtsp:// URL to connect to at startup")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	return &Config{
		Port:     *port,
		URL:      *url,
		LogLevel: logFlags.ToConfig().Level,
	}, nil
}
