// Command leaf runs one leaf node: it serves its local files and
// cached downloads to other leaves, maintains a registration link to
// its super-peer, and drives the interactive commands read from
// stdin.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	log "github.com/sirupsen/logrus"

	"github.com/rsjudka/overlay/internal/config"
	"github.com/rsjudka/overlay/internal/leaf"
	"github.com/rsjudka/overlay/internal/leafcli"
	"github.com/rsjudka/overlay/internal/logging"
	"github.com/rsjudka/overlay/internal/metrics"
)

func main() {
	cmd := flag.NewFlagSet("leaf", flag.ExitOnError)
	metricsAddr := cmd.String("metrics-addr", "", "address to serve scrapable metrics on (empty disables the admin server)")
	logLevel := cmd.String("log-level", "info", "log level (panic, fatal, error, warn, info, debug, trace)")
	cmd.Parse(os.Args[1:])

	args := cmd.Args()
	if len(args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: leaf <id> <config_path> <directory> [flags]")
		os.Exit(1)
	}

	id, err := strconv.Atoi(args[0])
	if err != nil {
		log.Fatalf("invalid leaf id %q: %s", args[0], err)
	}
	cfgPath := args[1]
	dir := args[2]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load configuration: %s", err)
	}
	self, ok := cfg.Leaves[int32(id)]
	if !ok {
		log.Fatalf("leaf %d not present in %s", id, cfgPath)
	}

	localDir := filepath.Join(dir, "local")
	remoteDir := filepath.Join(dir, "remote")
	if !isDir(localDir) || !isDir(remoteDir) {
		log.Fatalf("directory %s must contain local/ and remote/ subdirectories", dir)
	}

	serverLogger, err := logging.New(logging.LeafLogPath(self.Port, "server"), *logLevel)
	if err != nil {
		log.Fatalf("failed to configure server logging: %s", err)
	}
	clientLogger, err := logging.New(logging.LeafLogPath(self.Port, "client"), *logLevel)
	if err != nil {
		log.Fatalf("failed to configure client logging: %s", err)
	}
	serverLog := serverLogger.WithField("leaf", id)
	clientLog := clientLogger.WithField("leaf", id)

	local := leaf.NewLocalCatalog()
	remote := leaf.NewRemoteCatalog()

	scanned, err := leaf.ScanDirectory(localDir)
	if err != nil {
		log.Fatalf("failed to scan local directory: %s", err)
	}
	local.Replace(scanned)

	inbound := &leaf.Server{
		LeafID:    int32(id),
		LocalDir:  localDir,
		RemoteDir: remoteDir,
		Local:     local,
		Remote:    remote,
		Log:       serverLog,
	}

	addr := net.JoinHostPort("", strconv.Itoa(int(self.Port)))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("failed to listen on %s: %s", addr, err)
	}

	ready := false
	var adminServer *http.Server
	if *metricsAddr != "" {
		adminServer = metrics.NewAdminServer(*metricsAddr, &ready)
		go func() {
			clientLog.Infof("starting admin server on %s", *metricsAddr)
			if err := adminServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				clientLog.Errorf("admin server error (%s): %s", *metricsAddr, err)
			}
		}()
	}

	go func() {
		serverLog.Infof("serving on %s", addr)
		if err := inbound.Serve(ln); err != nil {
			serverLog.WithError(err).Info("accept loop stopped")
		}
	}()

	superAddr := net.JoinHostPort("127.0.0.1", strconv.Itoa(int(self.SuperPeerPort)))
	conn, err := leaf.DialRegistration(superAddr, int32(id))
	if err != nil {
		log.Fatalf("failed to reach super-peer at %s: %s", superAddr, err)
	}
	sess := leaf.NewSession(conn)

	resolve := func(leafID int32) (string, bool) {
		rec, ok := cfg.Leaves[leafID]
		if !ok {
			return "", false
		}
		return net.JoinHostPort("127.0.0.1", strconv.Itoa(int(rec.Port))), true
	}

	registrar := leaf.NewRegistrar(localDir, remoteDir, local, remote, cfg.Method, cfg.TTR, resolve, clientLog)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		if err := registrar.Run(ctx, sess, leaf.TickInterval); err != nil {
			clientLog.WithError(err).Warn("registration link closed")
		}
	}()

	ready = true

	fmt.Printf("current node id: %d\n\n", self.Port)

	cliDeps := &leafcli.Deps{
		Sess:        sess,
		Local:       local,
		Remote:      remote,
		RemoteDir:   remoteDir,
		ResolveLeaf: resolve,
		Out:         os.Stdout,
	}

	code := runREPL(cliDeps)

	cancel()
	ln.Close()
	sess.Close()
	if adminServer != nil {
		adminServer.Shutdown(context.Background())
	}
	os.Exit(code)
}

// runREPL reads one command per line from stdin until "q"/"Q" or EOF,
// returning the process exit code (0 on quit).
func runREPL(deps *leafcli.Deps) int {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("request [(s)earch|(o)btain|(r)efresh|(f)iles|(l)|(m)|(d)|(q)uit]: ")
		if !scanner.Scan() {
			return 0
		}
		if err := leafcli.Dispatch(deps, scanner.Text()); err != nil {
			if errors.Is(err, leafcli.ErrQuit) {
				return 0
			}
			fmt.Fprintln(os.Stderr, "unexpected request")
		}
	}
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
