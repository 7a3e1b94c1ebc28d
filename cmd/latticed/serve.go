package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/config"
	"github.com/lattice/lattice/internal/httpapi"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/ingest"
	"github.com/lattice/lattice/internal/lattice/lock"
	"github.com/lattice/lattice/internal/lattice/rebuild"
	"github.com/lattice/lattice/internal/lattice/search"
	"github.com/lattice/lattice/internal/store"
	"github.com/lattice/lattice/internal/store/sqlstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Lattice HTTP API",
	Long:  `serve opens the configured relational backend, wires the core services, and listens for HTTP requests on the configured address until interrupted.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo, err := sqlstore.Open(ctx, sqlstore.Backend(cfg.Backend), cfg.DSN)
	if err != nil {
		return fmt.Errorf("opening backend: %w", err)
	}
	defer repo.Close()

	hostname, _ := os.Hostname()
	blobs := blobstore.New()
	locks := lock.New(repo, hostname)
	indexes := indextable.New(repo)

	rebuildSvc := rebuild.New(repo, blobs, indexes)

	srv := &httpapi.Server{
		Repo:      repo,
		Blobs:     blobs,
		Locks:     locks,
		Indexes:   indexes,
		Ingest:    ingest.New(repo, blobs, locks, indexes),
		Search:    search.New(repo, blobs),
		Rebuild:   rebuildSvc,
		StartedAt: time.Now(),
		Backend:   cfg.Backend,
	}

	watchers, err := watchCollections(ctx, repo, rebuildSvc, logger)
	if err != nil {
		return fmt.Errorf("starting blob watchers: %w", err)
	}
	defer func() {
		for _, w := range watchers {
			w.Close()
		}
	}()

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: httpapi.NewRouter(srv),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("latticed listening on %s (backend=%s)", cfg.ListenAddr, cfg.Backend)
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case sig := <-sigCh:
		logger.Printf("received %s, shutting down", sig)
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// watchCollections starts a blobstore.Watcher against every existing
// collection's documents directory, so blobs dropped in outside the
// ingestion path (e.g. restored from a backup, copied in by an operator)
// get picked up by a rebuild without requiring a manual
// "latticed rebuild-index" call.
func watchCollections(ctx context.Context, repo store.Repository, rebuildSvc *rebuild.Service, logger *log.Logger) ([]*blobstore.Watcher, error) {
	collections, err := repo.ListCollections(ctx)
	if err != nil {
		return nil, err
	}

	watchers := make([]*blobstore.Watcher, 0, len(collections))
	for _, c := range collections {
		w, err := rebuildSvc.WatchCollection(ctx, c, logger)
		if err != nil {
			for _, started := range watchers {
				started.Close()
			}
			return nil, fmt.Errorf("watching collection %s: %w", c.ID, err)
		}
		watchers = append(watchers, w)
	}
	return watchers, nil
}
