package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"go.tickamp.dev/servicegraph"
)

// step is one instruction of the run command.
type step struct {
	name string
	arg  string
	wait time.Duration
}

func (s step) String() string {
	if s.arg == "" {
		return s.name
	}
	return s.name + "=" + s.arg
}

var stepsWithID = map[string]bool{
	"start":   true,
	"stop":    true,
	"started": true,
	"stopped": true,
}

func parseStep(s string) (step, error) {
	name, arg, hasArg := strings.Cut(s, "=")
	st := step{name: name, arg: arg}
	switch {
	case stepsWithID[name]:
		if arg == "" {
			return st, fmt.Errorf("step %q requires a service id", name)
		}
	case name == "wait":
		d, err := time.ParseDuration(arg)
		if err != nil {
			return st, fmt.Errorf("step %q: %w", s, err)
		}
		st.wait = d
	case name == "startall", name == "stopall", name == "status":
		if hasArg {
			return st, fmt.Errorf("step %q takes no argument", name)
		}
	default:
		return st, fmt.Errorf("unknown step %q", s)
	}
	return st, nil
}

func (s step) apply(m *servicegraph.Manager) error {
	switch s.name {
	case "start":
		return m.StartService(s.arg)
	case "stop":
		return m.StopService(s.arg)
	case "started":
		return m.ServiceStarted(s.arg)
	case "stopped":
		return m.ServiceStopped(s.arg)
	case "startall":
		return m.StartAllServices()
	case "stopall":
		return m.StopAllServices()
	case "status":
		return m.PublishServiceStatus()
	case "wait":
		<-time.After(s.wait)
	}
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	var output, auditPath string
	cmd := &cobra.Command{
		Use:   "run STEP...",
		Short: "Run a sequence of requests and notifications",
		Long: `Run builds a manager and applies the steps in order, printing every
published change set. Steps are:

  start=ID     request a service to start
  stop=ID      request a service to stop
  startall     request every service to start
  stopall      request every service to stop
  started=ID   notify that a service started
  stopped=ID   notify that a service stopped
  status       publish the status of every service
  wait=DUR     wait for asynchronous actions, e.g. wait=500ms`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := make([]step, len(args))
			for i, arg := range args {
				s, err := parseStep(arg)
				if err != nil {
					return err
				}
				steps[i] = s
			}
			p, err := newPrinter(cmd.OutOrStdout(), output)
			if err != nil {
				return err
			}

			m, release, err := a.newManager(auditPath)
			if err != nil {
				return err
			}
			defer release()

			p.setLabel("initial")
			if err := m.RegisterStatusListener(p.listener); err != nil {
				return err
			}
			for _, s := range steps {
				p.setLabel(s.String())
				if err := s.apply(m); err != nil {
					return fmt.Errorf("step %s: %w", s, err)
				}
			}
			return m.Shutdown()
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "table",
		"output format: table or yaml")
	cmd.Flags().StringVar(&auditPath, "audit", "",
		"SQLite event log (overrides the file)")
	return cmd
}
