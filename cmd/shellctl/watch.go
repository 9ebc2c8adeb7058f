package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/shellstore/internal/metrics"
	"github.com/brettbedarf/shellstore/internal/util"
	"github.com/brettbedarf/shellstore/watcher"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [folder]",
	Short: "Print debounced change events for a folder until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runWatch,
}

func init() {
	watchCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	if err := v.BindPFlag("metrics_addr", watchCmd.Flags().Lookup("metrics-addr")); err != nil {
		panic(err)
	}
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}
	logger := util.GetLogger("main.watch")
	ctx := cmd.Context()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("failed to stop metrics server")
			}
		}()
	}

	w := watcher.NewFromPath(path, cfg)
	defer w.Close()

	out := cmd.OutOrStdout()
	var count atomic.Int64
	w.OnAny(func(ev watcher.Event) {
		count.Add(1)
		line := fmt.Sprintf("%s %-22s", time.Now().Format(time.TimeOnly), ev.Kind)
		if ev.Item != nil {
			line += " " + ev.Item.ID()
		}
		if ev.NewItem != nil {
			line += " -> " + ev.NewItem.ID()
		}
		fmt.Fprintln(out, line)
	})

	select {
	case <-w.Watching():
		logger.Info().Str("path", w.Path()).Msg("watching")
	case <-time.After(5 * time.Second):
		return fmt.Errorf("%s: could not be watched", path)
	case <-ctx.Done():
		return nil
	}
	started := time.Now()
	<-ctx.Done()
	logger.Info().
		Str("events", humanize.Comma(count.Load())).
		Str("since", humanize.Time(started)).
		Msg("stopped watching")
	return nil
}

func serveMetrics(addr string) *http.Server {
	logger := util.GetLogger("main.metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(util.NewLogLogger("main.metrics", util.ErrorLevel)))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ErrorLog:          util.NewLogLogger("main.metrics", util.WarnLevel),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("addr", addr).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", addr).Msg("serving metrics")
	return srv
}
