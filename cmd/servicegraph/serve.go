package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"go.tickamp.dev/servicegraph"
	"go.tickamp.dev/servicegraph/metrics"
)

func newServeCmd(a *app) *cobra.Command {
	var metricsAddr, auditPath string
	var stopTimeout time.Duration
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start every service and stop them on SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr == "" {
				metricsAddr = a.file.Metrics.Addr
			}

			m, release, err := a.newManager(auditPath)
			if err != nil {
				return err
			}
			defer release()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			collector := metrics.NewCollector(reg)
			if err := m.RegisterStatusListener(collector.Observe); err != nil {
				return err
			}

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           metricsHandler(reg),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					a.logger.Info("serving metrics", "addr", metricsAddr)
					err := srv.ListenAndServe()
					if err != nil && !errors.Is(err, http.ErrServerClosed) {
						a.logger.Error("metrics server failed", "error", err)
					}
				}()
				defer func() {
					ctx, cancel := context.WithTimeout(context.Background(),
						5*time.Second)
					defer cancel()
					_ = srv.Shutdown(ctx)
				}()
			}

			r := servicegraph.NewRunner(m, &servicegraph.RunnerOptions{
				StopTimeout: stopTimeout,
				Logger:      servicegraph.SlogLogger(a.logger),
			})
			return r.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "",
		"address serving /metrics (overrides the file)")
	cmd.Flags().StringVar(&auditPath, "audit", "",
		"SQLite event log (overrides the file)")
	cmd.Flags().DurationVar(&stopTimeout, "stop-timeout", 15*time.Second,
		"maximum time to wait for every service to stop")
	return cmd
}

func metricsHandler(reg *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg,
		promhttp.HandlerOpts{EnableOpenMetrics: true}))
	return mux
}
