// Command superpeer runs one super-peer process: it loads the static
// network configuration, indexes its attached leaves' files, and
// floods search queries and invalidations to its neighboring
// super-peers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/rsjudka/overlay/internal/config"
	"github.com/rsjudka/overlay/internal/logging"
	"github.com/rsjudka/overlay/internal/metrics"
	"github.com/rsjudka/overlay/internal/superpeer"
)

func main() {
	cmd := flag.NewFlagSet("superpeer", flag.ExitOnError)
	metricsAddr := cmd.String("metrics-addr", "", "address to serve scrapable metrics on (empty disables the admin server)")
	logLevel := cmd.String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	cmd.Parse(os.Args[1:])

	args := cmd.Args()
	if len(args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: superpeer <id> <config_path> [flags]")
		os.Exit(1)
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("invalid super-peer id %q: %s", args[0], err)
	}
	cfgPath := args[1]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}
	self, ok := cfg.SuperPeers[int32(id)]
	if !ok {
		log.Fatalf("super-peer %d not present in %s", id, cfgPath)
	}

	logger, err := logging.New(logging.SuperPeerLogPath(self.Port), *logLevel)
	if err != nil {
		log.Fatalf("failed to configure logging: %s", err)
	}
	entry := logger.WithField("super_peer", id)

	counters := metrics.NewCounters("superpeer")

	srv, err := superpeer.New(int32(id), cfg, counters, entry)
	if err != nil {
		log.Fatalf("failed to initialize super-peer: %s", err)
	}

	ready := false
	var adminServer *http.Server
	if *metricsAddr != "" {
		adminServer = metrics.NewAdminServer(*metricsAddr, &ready)
		go func() {
			entry.Infof("starting admin server on %s", *metricsAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				entry.Errorf("admin server error (%s): %s", *metricsAddr, err)
			}
		}()
	}

	addr := net.JoinHostPort("", strconv.Itoa(int(self.Port)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %s", addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopScheme := srv.Start(ctx)

	go func() {
		entry.Infof("serving on %s", addr)
		if err := srv.Serve(ctx, ln); err != nil {
			entry.WithError(err).Info("accept loop stopped")
		}
	}()

	ready = true

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	entry.Info("shutting down")
	cancel()
	stopScheme()
	ln.Close()
	srv.Close()
	if adminServer != nil {
		adminServer.Shutdown(context.Background())
	}
}
