// Command servicegraph loads a service graph definition and drives it through
// the service manager.
package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"go.tickamp.dev/servicegraph"
	"go.tickamp.dev/servicegraph/audit"
	"go.tickamp.dev/servicegraph/internal/config"
)

// app holds the state shared by the commands.
type app struct {
	configPath string
	logLevel   string
	strategy   string

	file   *config.File
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "servicegraph",
		Short: "Start and stop services in dependency order",
		Long: `servicegraph loads a graph of services from a YAML file and starts
or stops them so that a service only runs while every service it requires
runs.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}
	cmd.PersistentFlags().StringVarP(&a.configPath, "config", "c",
		"graph.yaml", "graph definition file")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "",
		"log level: debug, info, warn, error (overrides the file)")
	cmd.PersistentFlags().StringVar(&a.strategy, "strategy", "",
		"graph evaluation strategy: interpreted or compiled (overrides the file)")

	cmd.AddCommand(newValidateCmd(a), newRunCmd(a), newServeCmd(a))
	return cmd
}

func (a *app) load(cmd *cobra.Command) error {
	f, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		f.Log.Level = a.logLevel
	}
	if a.strategy != "" {
		f.Strategy = a.strategy
	}
	if err := f.Validate(); err != nil {
		return err
	}
	level, _ := f.Log.SlogLevel()
	a.file = f
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(),
		&slog.HandlerOptions{Level: level}))
	return nil
}

// newManager builds the graph and a manager with the configured event log.
// The returned function releases the event log.
func (a *app) newManager(auditPath string) (*servicegraph.Manager,
	func(), error) {
	g, err := a.file.Builder().Build()
	if err != nil {
		return nil, nil, err
	}

	logger := servicegraph.SlogLogger(a.logger)
	var sinks audit.Sinks
	release := func() {}
	if auditPath == "" {
		auditPath = a.file.Audit.Path
	}
	if auditPath != "" {
		store, err := audit.NewSQLiteStore(auditPath)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, store)
		release = func() {
			if err := store.Close(); err != nil {
				a.logger.Error("cannot close event log", "error", err)
			}
		}
	}
	if a.file.Audit.Log {
		sinks = append(sinks, audit.NewLogSink(logger))
	}

	opts := &servicegraph.Options{
		Strategy: a.file.GraphStrategy(),
		Logger:   logger,
	}
	if len(sinks) > 0 {
		opts.Audit = sinks
	}
	m, err := servicegraph.NewManager(g, opts)
	if err != nil {
		release()
		return nil, nil, err
	}
	return m, release, nil
}

func main() {
	// cobra reports the error
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
