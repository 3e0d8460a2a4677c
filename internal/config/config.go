// Package config loads service graph definition files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"

	"go.tickamp.dev/servicegraph"
)

// File is the content of a graph definition file.
type File struct {
	// Strategy evaluating the graph: "interpreted" (default) or "compiled".
	Strategy string          `yaml:"strategy"`
	Log      LogConfig       `yaml:"log"`
	Audit    AuditConfig     `yaml:"audit"`
	Metrics  MetricsConfig   `yaml:"metrics"`
	Services []ServiceConfig `yaml:"services"`
}

// LogConfig configures the logger of the CLI.
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info).
	Level string `yaml:"level"`
}

// AuditConfig configures the event log.
type AuditConfig struct {
	// Path of the SQLite event log; no event log is kept when empty.
	Path string `yaml:"path"`
	// Log writes the event log to the logger as well.
	Log bool `yaml:"log"`
}

// MetricsConfig configures the metrics endpoint of serve.
type MetricsConfig struct {
	// Addr to listen on for /metrics; disabled when empty.
	Addr string `yaml:"addr"`
}

// ServiceConfig declares one service. Its actions are simulated: they
// complete after the configured delay, unless Manual is set in which case
// completions must be notified explicitly.
type ServiceConfig struct {
	ID         string        `yaml:"id"`
	Requires   []string      `yaml:"requires"`
	RequiredBy []string      `yaml:"requiredBy"`
	StartDelay time.Duration `yaml:"startDelay"`
	StopDelay  time.Duration `yaml:"stopDelay"`
	Manual     bool          `yaml:"manual"`
}

// Validate checks the settings of the file. The graph itself is validated
// when it is built.
func (f *File) Validate() error {
	var errs *multierror.Error
	if len(f.Services) == 0 {
		errs = multierror.Append(errs, errors.New("no service declared"))
	}
	if f.Strategy != "" {
		if _, ok := servicegraph.StrategyByName(f.Strategy); !ok {
			errs = multierror.Append(errs,
				fmt.Errorf("unknown strategy %q", f.Strategy))
		}
	}
	if _, err := f.Log.SlogLevel(); err != nil {
		errs = multierror.Append(errs, err)
	}
	for i, s := range f.Services {
		if s.StartDelay < 0 || s.StopDelay < 0 {
			errs = multierror.Append(errs,
				fmt.Errorf("services[%d] (%s): negative delay", i, s.ID))
		}
	}
	return errs.ErrorOrNil()
}

// SlogLevel parses the configured level.
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if c.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", c.Level)
	}
	return level, nil
}

// GraphStrategy returns the configured strategy.
func (f *File) GraphStrategy() servicegraph.Strategy {
	if s, ok := servicegraph.StrategyByName(f.Strategy); ok {
		return s
	}
	return servicegraph.Interpreted()
}

// Builder declares every service of the file on a new builder.
func (f *File) Builder() *servicegraph.Builder {
	b := servicegraph.NewBuilder()
	for _, s := range f.Services {
		svc := servicegraph.Service{
			ID:         s.ID,
			Requires:   s.Requires,
			RequiredBy: s.RequiredBy,
		}
		if !s.Manual {
			svc.Start = simulated(s.StartDelay)
			svc.Stop = simulated(s.StopDelay)
		}
		b.AddService(svc)
	}
	return b
}

func simulated(delay time.Duration) servicegraph.Action {
	if delay <= 0 {
		return servicegraph.Inline(nil)
	}
	return servicegraph.After(delay)
}
