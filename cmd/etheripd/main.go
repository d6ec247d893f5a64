// etheripd is the EtherIP (RFC 3378) tunnel daemon: it bridges Ethernet
// frames between one or more persistent Linux TAP interfaces and their
// configured remote peers, encapsulated in IP protocol 97 datagrams.
//
// It does not daemonize and carries no process-supervision integration;
// run it under a process supervisor such as systemd.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/menhera-org/etherip-rs/internal/etherip"
	"github.com/menhera-org/etherip-rs/internal/logging"
	"github.com/menhera-org/etherip-rs/internal/metrics"
	"github.com/menhera-org/etherip-rs/internal/rawsock"
	"github.com/menhera-org/etherip-rs/internal/runtime"
	"github.com/menhera-org/etherip-rs/internal/tap"
	appversion "github.com/menhera-org/etherip-rs/internal/version"
)

const defaultConfigPath = "/etc/etheripd/etheripd.toml"
const defaultMetricsListen = "127.0.0.1:9479"

// shutdownTimeout bounds how long the metrics HTTP server is given to
// drain connections once SIGINT/SIGTERM arrives.
const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	var configPath string
	var metricsListen string

	cmd := &cobra.Command{
		Use:           "etheripd",
		Short:         "EtherIP (RFC 3378) tunnel daemon",
		Version:       appversion.Version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runDaemon(configPath, metricsListen)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to configuration file (TOML)")
	cmd.Flags().StringVar(&metricsListen, "metrics-listen", defaultMetricsListen, "address to serve Prometheus metrics on")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func runDaemon(configPath, metricsListen string) error {
	logger, levelVar, err := logging.New()
	if err != nil {
		return fmt.Errorf("etheripd: %w", err)
	}

	logger.Info("etheripd starting",
		slog.String("version", appversion.Version),
		slog.String("config", configPath),
		slog.String("metrics_listen", metricsListen),
	)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	sock, err := rawsock.NewNonBlocking(etherip.Protocol)
	if err != nil {
		return fmt.Errorf("etheripd: open EtherIP socket: %w", err)
	}
	defer sock.Close()

	if err := sock.SetFragmentConfig(rawsock.Fragment); err != nil {
		return fmt.Errorf("etheripd: configure fragmentation: %w", err)
	}
	if err := sock.BindUnspecified(); err != nil {
		return fmt.Errorf("etheripd: bind EtherIP socket: %w", err)
	}

	rt := runtime.New(configPath, sock, openTap, tap.Delete, logger, levelVar, collector)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metricsSrv := metrics.NewServer(metricsListen, reg)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("metrics server listening", slog.String("addr", metricsListen))
		lc := net.ListenConfig{}
		ln, err := lc.Listen(gCtx, "tcp", metricsListen)
		if err != nil {
			return fmt.Errorf("metrics listen on %s: %w", metricsListen, err)
		}
		if err := metricsSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics serve on %s: %w", metricsListen, err)
		}
		return nil
	})

	g.Go(func() error {
		return rt.Run(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("etheripd: %w", err)
	}

	logger.Info("etheripd stopped")
	return nil
}

// openTap adapts tap.Open to runtime.OpenTapFunc.
func openTap(name string) (runtime.TapDevice, error) {
	return tap.Open(name)
}
