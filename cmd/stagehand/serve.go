package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/phanxgames/stagehand"
	"github.com/phanxgames/stagehand/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve [script]",
		Short: "Run a World behind the HTTP API",
		Long: `Starts a World ticking in the background and exposes it over HTTP:
POST /execute, POST /messages, GET /query, GET /tree, GET /events
(websocket) and GET /metrics. An optional script runs before serving.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, args)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default server.addr)")
	return cmd
}

func (a *app) serve(ctx context.Context, args []string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	script := ""
	if len(args) > 0 {
		script = args[0]
	}
	w, err := a.newWorld(script, stagehand.WithMetrics(reg))
	if err != nil {
		return err
	}
	defer w.Dispose()

	srv := server.New(w, server.WithLogger(a.log), server.WithGatherer(reg))
	if script != "" {
		data, err := os.ReadFile(script)
		if err != nil {
			return err
		}
		if err := w.ExecuteScript(ctx, data, srv.Hub().Callbacks()); err != nil {
			return err
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	runDone := make(chan error, 1)
	go func() {
		runDone <- w.Run(runCtx, time.Duration(a.cfg.World.Tick)*time.Millisecond)
	}()

	httpSrv := &http.Server{Addr: a.cfg.Server.Addr, Handler: srv.Handler()}
	serverErrors := make(chan error, 1)
	go func() {
		a.log.Info("serving", "addr", httpSrv.Addr)
		serverErrors <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		cancel()
		<-runDone
		return err
	case <-ctx.Done():
		a.log.Info("shutting down")
	}

	shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
	defer done()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.log.Warn("graceful shutdown did not complete", "error", err)
		httpSrv.Close()
	}
	cancel()
	if err := <-runDone; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
