// ABOUTME: serve command: runs the attachment janitor and the ops listener
// ABOUTME: Exposes /health and Prometheus /metrics until SIGINT or SIGTERM

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/2389/parley-gateway/internal/conversation"
	"github.com/2389/parley-gateway/internal/store"
)

const (
	healthTimeout   = 2 * time.Second
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the janitor and the health/metrics listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context(), cmd)
		},
	}
}

func (a *app) runServe(ctx context.Context, cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	s, err := a.openStore(reg)
	if err != nil {
		return err
	}
	defer s.Close()

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", a.configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Store:     %s\n", a.cfg.Database.Driver)
	if a.cfg.Metrics.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "Ops:       http://%s%s\n", a.cfg.Metrics.Addr, a.cfg.Metrics.Path)
	}
	fmt.Fprintln(out)

	a.logger.Info("starting parley-gateway",
		"version", version,
		"driver", a.cfg.Database.Driver,
		"metrics", a.cfg.Metrics.Enabled)

	janitor := conversation.NewJanitor(s, a.cfg.Janitor.Interval, a.cfg.Janitor.BatchSize, a.logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	g.Go(func() error {
		return janitor.Run(gctx)
	})

	if a.cfg.Metrics.Enabled {
		srv := &http.Server{
			Addr:              a.cfg.Metrics.Addr,
			Handler:           opsHandler(s, reg, a.cfg.Metrics.Path),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ops listener: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	a.logger.Info("parley-gateway stopped")
	return err
}

// opsHandler serves liveness and metrics.
func opsHandler(s store.ConversationStore, gatherer prometheus.Gatherer, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		status, code := "ok", http.StatusOK
		if _, err := s.LoadThreads(ctx, 1, "", store.OrderAsc); err != nil {
			status, code = "unavailable", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	})
	return mux
}
